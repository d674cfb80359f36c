// Package catalog loads journey templates and samples them at random.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/Openpanel-dev/mock/internal/core"
)

// ErrCatalogEmpty indicates no journey templates are loaded. Treated as
// transient by callers: the admission opportunity is skipped, ticking
// continues.
var ErrCatalogEmpty = errors.New("session catalog is empty")

// Catalog holds immutable journey templates loaded from a sessions file.
// Sample is safe for concurrent use.
type Catalog struct {
	journeys []core.Journey
	mu       sync.Mutex
	rng      *rand.Rand
}

// New creates a catalog from pre-built journeys.
func New(journeys []core.Journey) *Catalog {
	return NewWithRand(journeys, rand.New(rand.NewSource(rand.Int63())))
}

// NewWithRand creates a catalog with a custom random source (for testing).
func NewWithRand(journeys []core.Journey, rng *rand.Rand) *Catalog {
	return &Catalog{journeys: journeys, rng: rng}
}

// Load reads a sessions JSON file: an array of {referrer, events[]}
// objects where each event object carries the name under "event" and any
// remaining keys as properties.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	journeys, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog file %s: %w", path, err)
	}
	return New(journeys), nil
}

// Parse decodes catalog bytes into journeys.
func Parse(data []byte) ([]core.Journey, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("catalog is not valid JSON")
	}
	if !gjson.ParseBytes(data).IsArray() {
		return nil, fmt.Errorf("catalog root must be a JSON array")
	}

	var journeys []core.Journey
	if err := json.Unmarshal(data, &journeys); err != nil {
		return nil, err
	}
	for i, j := range journeys {
		if len(j.Events) == 0 {
			return nil, fmt.Errorf("journey %d has no events", i)
		}
	}
	return journeys, nil
}

// Len returns the number of loaded templates.
func (c *Catalog) Len() int {
	return len(c.journeys)
}

// Sample returns a uniformly random journey template. The returned
// journey is shared and must be treated as read-only.
func (c *Catalog) Sample() (core.Journey, error) {
	if len(c.journeys) == 0 {
		return core.Journey{}, ErrCatalogEmpty
	}
	c.mu.Lock()
	idx := c.rng.Intn(len(c.journeys))
	c.mu.Unlock()
	return c.journeys[idx], nil
}
