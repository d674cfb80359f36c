// Package core defines the fundamental interfaces and types for the
// traffic generator.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event is a single tracked action inside a journey. In the catalog file
// an event is a flat JSON object whose "event" key is the name; every
// other key is a property.
type Event struct {
	Name       string
	Properties map[string]any
}

// UnmarshalJSON splits the "event" key off from the property map.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	name, ok := raw["event"].(string)
	if !ok || name == "" {
		return fmt.Errorf("event object has no %q key", "event")
	}
	delete(raw, "event")
	e.Name = name
	e.Properties = raw
	return nil
}

// Journey is an ordered template of events for one simulated session.
// Journeys are immutable after load and may be shared by many visitors.
type Journey struct {
	Referrer string  `json:"referrer"`
	Events   []Event `json:"events"`
}

// Visitor is one admitted synthetic visitor. A visitor exists only for
// the duration of a single journey run and is never persisted.
type Visitor struct {
	ID        string
	SpawnedAt time.Time
	Journey   Journey
	UserAgent string
	IPAddress string
}

// RunResult summarizes one completed journey run.
type RunResult struct {
	VisitorID       string
	EventsProcessed int
	Duration        time.Duration
}

// EventSink records individual events with an external analytics backend.
// The visitor supplies per-request context (client IP, user agent,
// referrer); implementations must be safe for concurrent use.
type EventSink interface {
	Track(ctx context.Context, visitor *Visitor, name string, properties map[string]any) error
}

// Catalog supplies journey templates, uniformly at random.
type Catalog interface {
	Sample() (Journey, error)
}
