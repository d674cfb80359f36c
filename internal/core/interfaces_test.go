package core

import (
	"encoding/json"
	"testing"
)

func TestEvent_UnmarshalJSON(t *testing.T) {
	data := `{"event": "add_to_cart", "price": 49.99, "size": "42"}`

	var e Event
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Name != "add_to_cart" {
		t.Errorf("expected name add_to_cart, got %q", e.Name)
	}
	if e.Properties["price"] != 49.99 {
		t.Errorf("expected price property, got %v", e.Properties)
	}
	if e.Properties["size"] != "42" {
		t.Errorf("expected size property, got %v", e.Properties)
	}
	if _, ok := e.Properties["event"]; ok {
		t.Error("event key must not remain in properties")
	}
}

func TestEvent_UnmarshalJSON_MissingName(t *testing.T) {
	var e Event
	if err := json.Unmarshal([]byte(`{"path": "/"}`), &e); err == nil {
		t.Error("expected error for event without name")
	}
}

func TestEvent_UnmarshalJSON_NoProperties(t *testing.T) {
	var e Event
	if err := json.Unmarshal([]byte(`{"event": "session_end"}`), &e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Name != "session_end" {
		t.Errorf("expected name session_end, got %q", e.Name)
	}
	if len(e.Properties) != 0 {
		t.Errorf("expected no properties, got %v", e.Properties)
	}
}
