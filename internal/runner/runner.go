// Package runner executes a visitor's journey: events in catalog order,
// human-like delays in between, one sink call per event.
package runner

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Openpanel-dev/mock/internal/core"
)

const (
	// screenView events carry navigation properties that are renamed to
	// internal keys before emission.
	screenView = "screen_view"

	// directReferrer is the sentinel meaning "no referrer to attach".
	directReferrer = "direct"
)

// Runner executes journeys sequentially for one visitor at a time. A
// single Runner is shared by all workers; Run is safe for concurrent use.
type Runner struct {
	sink     core.EventSink
	minDelay time.Duration
	maxDelay time.Duration
	clock    core.Clock
	log      *zap.SugaredLogger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a runner with the given inter-event delay bounds.
func New(sink core.EventSink, minDelay, maxDelay time.Duration, log *zap.SugaredLogger) *Runner {
	return NewWith(sink, minDelay, maxDelay, log, core.RealClock{}, rand.New(rand.NewSource(rand.Int63())))
}

// NewWith creates a runner with custom clock and random source (for testing).
func NewWith(sink core.EventSink, minDelay, maxDelay time.Duration, log *zap.SugaredLogger, clock core.Clock, rng *rand.Rand) *Runner {
	return &Runner{
		sink:     sink,
		minDelay: minDelay,
		maxDelay: maxDelay,
		clock:    clock,
		log:      log,
		rng:      rng,
	}
}

// Run emits the visitor's events in order. A sink failure aborts the
// remaining events for this visitor only; the partial result is returned
// alongside the error. Already-emitted events are never replayed.
func (r *Runner) Run(ctx context.Context, visitor *core.Visitor) (core.RunResult, error) {
	start := r.clock.Now()
	events := visitor.Journey.Events

	r.log.Debugw("starting journey",
		"visitor", visitor.ID,
		"events", len(events),
		"referrer", visitor.Journey.Referrer,
	)

	for i, event := range events {
		props := NormalizeProperties(event, visitor.Journey.Referrer)
		if err := r.sink.Track(ctx, visitor, event.Name, props); err != nil {
			return core.RunResult{
					VisitorID:       visitor.ID,
					EventsProcessed: i,
					Duration:        r.clock.Since(start),
				}, fmt.Errorf("journey for %s aborted at event %d (%s): %w",
					visitor.ID, i, event.Name, err)
		}

		if i < len(events)-1 {
			if err := r.sleep(ctx); err != nil {
				return core.RunResult{
					VisitorID:       visitor.ID,
					EventsProcessed: i + 1,
					Duration:        r.clock.Since(start),
				}, err
			}
		}
	}

	return core.RunResult{
		VisitorID:       visitor.ID,
		EventsProcessed: len(events),
		Duration:        r.clock.Since(start),
	}, nil
}

// sleep waits a uniformly random duration in [minDelay, maxDelay], or
// returns early if ctx is cancelled.
func (r *Runner) sleep(ctx context.Context) error {
	delay := r.minDelay
	if span := r.maxDelay - r.minDelay; span > 0 {
		r.mu.Lock()
		delay += time.Duration(r.rng.Int63n(int64(span) + 1))
		r.mu.Unlock()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NormalizeProperties prepares an event's properties for emission.
//
// For screen_view events the catalog's path/page_title become the sink's
// internal navigation keys (__path/__title). For every other event name
// those keys are stripped; a malformed catalog entry must not leak them.
// The session referrer is attached as __referrer unless it is the
// "direct" sentinel.
func NormalizeProperties(event core.Event, referrer string) map[string]any {
	props := make(map[string]any, len(event.Properties)+1)
	for k, v := range event.Properties {
		if k == "path" || k == "page_title" {
			continue
		}
		props[k] = v
	}

	if event.Name == screenView {
		if path, ok := event.Properties["path"]; ok {
			props["__path"] = path
		}
		if title, ok := event.Properties["page_title"]; ok {
			props["__title"] = title
		}
	}

	if referrer != "" && referrer != directReferrer {
		props["__referrer"] = referrer
	}

	return props
}
