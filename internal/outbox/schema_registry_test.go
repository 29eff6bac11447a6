package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEnsureSchemaResolvesExistingSubject(t *testing.T) {
	var gotPath, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		json.NewEncoder(w).Encode(map[string]int{"id": 17})
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL + "/")
	id, err := client.EnsureSchema(context.Background(), "shift_events-value", shiftEventSchema)
	if err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if id != 17 {
		t.Fatalf("got schema ID %d, want 17", id)
	}
	if gotPath != "/subjects/shift_events-value/versions/latest" {
		t.Fatalf("unexpected lookup path %s", gotPath)
	}
	if gotAgent != registryUserAgent {
		t.Fatalf("unexpected user agent %q", gotAgent)
	}
}

func TestEnsureSchemaRegistersMissingSubject(t *testing.T) {
	var registeredType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			SchemaType string `json:"schemaType"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode register body: %v", err)
		}
		registeredType = body.SchemaType
		json.NewEncoder(w).Encode(map[string]int{"id": 4})
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL)
	id, err := client.EnsureSchema(context.Background(), "shift_state_changed-value", shiftStateChangedSchema)
	if err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if id != 4 {
		t.Fatalf("got schema ID %d, want 4", id)
	}
	if registeredType != "JSON" {
		t.Fatalf("registered schema type %q, want JSON", registeredType)
	}
}

func TestEnsureSchemaReportsSubjectInErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL)
	_, err := client.EnsureSchema(context.Background(), "shift_events-value", shiftEventSchema)
	if err == nil {
		t.Fatal("expected an error from a failing registry")
	}
	if !strings.Contains(err.Error(), "shift_events-value") {
		t.Fatalf("error %q does not name the subject", err)
	}
}
