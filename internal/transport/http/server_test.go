package httptransport

import (
	"net/http"
	"testing"
	"time"
)

func TestNewServerAppliesDefaultTimeouts(t *testing.T) {
	srv := NewServer(ServerConfig{Address: ":8080"}, http.NewServeMux())

	if srv.Addr != ":8080" {
		t.Fatalf("addr %q, want :8080", srv.Addr)
	}
	if srv.ReadTimeout != defaultReadTimeout {
		t.Fatalf("read timeout %s, want %s", srv.ReadTimeout, defaultReadTimeout)
	}
	if srv.ReadHeaderTimeout != defaultReadTimeout {
		t.Fatalf("read header timeout %s, want %s", srv.ReadHeaderTimeout, defaultReadTimeout)
	}
	if srv.WriteTimeout != defaultWriteTimeout {
		t.Fatalf("write timeout %s, want %s", srv.WriteTimeout, defaultWriteTimeout)
	}
	if srv.IdleTimeout != defaultIdleTimeout {
		t.Fatalf("idle timeout %s, want %s", srv.IdleTimeout, defaultIdleTimeout)
	}
}

func TestNewServerKeepsExplicitTimeouts(t *testing.T) {
	srv := NewServer(ServerConfig{
		Address:      ":9090",
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  4 * time.Second,
	}, http.NewServeMux())

	if srv.ReadTimeout != 2*time.Second || srv.WriteTimeout != 3*time.Second || srv.IdleTimeout != 4*time.Second {
		t.Fatalf("explicit timeouts overridden: read=%s write=%s idle=%s",
			srv.ReadTimeout, srv.WriteTimeout, srv.IdleTimeout)
	}
}
