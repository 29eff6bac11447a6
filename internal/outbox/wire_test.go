package outbox

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWireFormat(t *testing.T) {
	payload := []byte(`{"shift_id":"abc"}`)
	frame := encodeWireFormat(42, payload)

	if len(frame) != 5+len(payload) {
		t.Fatalf("unexpected frame length %d", len(frame))
	}
	if frame[0] != 0 {
		t.Fatalf("magic byte must be zero, got %d", frame[0])
	}
	if id := binary.BigEndian.Uint32(frame[1:5]); id != 42 {
		t.Fatalf("expected schema id 42, got %d", id)
	}
	if !bytes.Equal(frame[5:], payload) {
		t.Fatal("payload must follow the header unchanged")
	}
}

func TestSchemaCatalogCoversEmittedEvents(t *testing.T) {
	for _, eventType := range []string{"shift.clocked_in", "shift.clocked_out", "shift.state_changed"} {
		meta, ok := schemaCatalog[eventType]
		if !ok || meta.Schema == "" {
			t.Fatalf("missing schema metadata for %s", eventType)
		}
	}
}
