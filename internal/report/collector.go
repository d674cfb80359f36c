// Package report aggregates journey run outcomes for observability. The
// history is bounded and carries no durability obligation.
package report

import (
	"sync"
	"time"

	"github.com/Openpanel-dev/mock/internal/core"
)

// Outcome is one finished journey run, successful or not.
type Outcome struct {
	Result     core.RunResult
	Err        error
	FinishedAt time.Time
}

// Summary is a point-in-time aggregate of all reported outcomes.
type Summary struct {
	Completed     int
	Failed        int
	EventsEmitted int
	TotalDuration time.Duration
}

// Collector receives outcomes from runner workers and keeps a bounded
// recent history plus running aggregates.
type Collector struct {
	ch      chan Outcome
	done    chan struct{}
	mu      sync.Mutex
	recent  []Outcome
	limit   int
	summary Summary
}

// NewCollector creates a collector retaining at most limit recent
// outcomes and starts its collection goroutine.
func NewCollector(limit int) *Collector {
	if limit < 1 {
		limit = 1
	}
	c := &Collector{
		ch:    make(chan Outcome, 256),
		done:  make(chan struct{}),
		limit: limit,
	}
	go c.collect()
	return c
}

// collect runs in a goroutine, receiving outcomes until the channel is
// closed.
func (c *Collector) collect() {
	for outcome := range c.ch {
		c.mu.Lock()
		c.recent = append(c.recent, outcome)
		if len(c.recent) > c.limit {
			c.recent = c.recent[len(c.recent)-c.limit:]
		}
		if outcome.Err != nil {
			c.summary.Failed++
		} else {
			c.summary.Completed++
		}
		c.summary.EventsEmitted += outcome.Result.EventsProcessed
		c.summary.TotalDuration += outcome.Result.Duration
		c.mu.Unlock()
	}
	close(c.done)
}

// Report sends an outcome to the collector. Thread-safe; drops when the
// channel is full rather than blocking a worker.
func (c *Collector) Report(outcome Outcome) {
	select {
	case c.ch <- outcome:
	default:
	}
}

// Close signals the collector to stop accepting outcomes and waits for
// the collection goroutine to drain.
func (c *Collector) Close() {
	close(c.ch)
	<-c.done
}

// Summary returns the current aggregates.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// Recent returns a copy of the retained history, oldest first.
func (c *Collector) Recent() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Outcome, len(c.recent))
	copy(out, c.recent)
	return out
}
