package pacing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Openpanel-dev/mock/internal/core"
	"github.com/Openpanel-dev/mock/internal/counter"
	"github.com/Openpanel-dev/mock/internal/identity"
	"github.com/Openpanel-dev/mock/internal/metrics"
)

// DefaultInterval is the pacing check cadence.
const DefaultInterval = time.Second

// Submitter accepts admitted visitors for execution.
type Submitter interface {
	Submit(visitor *core.Visitor) error
}

// Ticker drives the controller at a fixed interval and turns positive
// decisions into queued admissions. Admission handoff is fire-and-forget:
// a tick never waits for a journey.
type Ticker struct {
	interval   time.Duration
	controller *Controller
	store      counter.Store
	catalog    core.Catalog
	queue      Submitter
	metrics    *metrics.Metrics
	clock      core.Clock
	log        *zap.SugaredLogger

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewTicker wires the admission path together.
func NewTicker(interval time.Duration, ctrl *Controller, store counter.Store, cat core.Catalog, q Submitter, m *metrics.Metrics, log *zap.SugaredLogger) *Ticker {
	return NewTickerWithClock(interval, ctrl, store, cat, q, m, log, core.RealClock{})
}

// NewTickerWithClock creates a ticker with a custom clock (for testing).
func NewTickerWithClock(interval time.Duration, ctrl *Controller, store counter.Store, cat core.Catalog, q Submitter, m *metrics.Metrics, log *zap.SugaredLogger, clock core.Clock) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{
		interval:   interval,
		controller: ctrl,
		store:      store,
		catalog:    cat,
		queue:      q,
		metrics:    m,
		clock:      clock,
		log:        log,
		done:       make(chan struct{}),
	}
}

// Start begins ticking until ctx is cancelled or Stop is called.
func (t *Ticker) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	go t.loop(ctx)
}

func (t *Ticker) loop(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// tick runs one pacing check. Errors skip the tick; a missed tick is not
// retried, it only removes one admission opportunity.
func (t *Ticker) tick() {
	decision, err := t.controller.Evaluate()
	if err != nil {
		t.metrics.TicksSkipped.Inc()
		t.log.Warnw("skipping tick, counter store unavailable", "error", err)
		return
	}

	t.log.Debugw("pacing decision",
		"hour", decision.Hour,
		"target_visitors", decision.TargetVisitors,
		"current_visitors", decision.CurrentVisitors,
		"visitors_needed", decision.VisitorsNeeded,
		"remaining_seconds", decision.RemainingSeconds,
		"spawn_rate", decision.SpawnRate,
		"adjusted_rate", decision.AdjustedRate,
		"spawn", decision.Spawn,
	)

	if !decision.Spawn {
		return
	}

	// Sample before incrementing so an empty catalog does not consume
	// quota for a visitor that never existed.
	journey, err := t.catalog.Sample()
	if err != nil {
		t.metrics.TicksSkipped.Inc()
		t.log.Warnw("skipping admission, catalog unavailable", "error", err)
		return
	}

	count, err := t.store.Increment()
	if err != nil {
		t.metrics.TicksSkipped.Inc()
		t.log.Warnw("skipping admission, counter store unavailable", "error", err)
		return
	}

	visitor := &core.Visitor{
		ID:        identity.NewVisitorID(),
		SpawnedAt: t.clock.Now(),
		Journey:   journey,
		UserAgent: identity.UserAgent(),
		IPAddress: identity.IPAddress(),
	}

	if err := t.queue.Submit(visitor); err != nil {
		t.log.Warnw("admission not queued", "visitor", visitor.ID, "error", err)
		return
	}

	t.metrics.Admissions.Inc()
	t.log.Infow("admitted visitor",
		"visitor", visitor.ID,
		"events", len(journey.Events),
		"hour_count", count,
		"hour_target", decision.TargetVisitors,
	)
}

// Stop halts ticking and waits for the loop to exit. No new admissions
// are produced after Stop returns.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
		<-t.done
	})
}
