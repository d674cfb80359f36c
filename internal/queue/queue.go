// Package queue dispatches admitted visitors to journey execution with a
// bounded worker pool and randomized start jitter.
package queue

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Openpanel-dev/mock/internal/core"
	"github.com/Openpanel-dev/mock/internal/metrics"
	"github.com/Openpanel-dev/mock/internal/report"
)

// ErrStopped is returned by Submit after the queue has been stopped.
var ErrStopped = errors.New("admission queue stopped")

// JourneyRunner executes one visitor's journey.
type JourneyRunner interface {
	Run(ctx context.Context, visitor *core.Visitor) (core.RunResult, error)
}

// Queue accepts admitted visitors, waits a random start delay per visitor
// to spread bursts, and hands them to a fixed pool of workers. Visitors
// beyond the buffer capacity are dropped; lost admissions only under-shoot
// the hourly target.
type Queue struct {
	runner    JourneyRunner
	jitterMax time.Duration
	jobs      chan *core.Visitor
	collector *report.Collector
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
	clock     core.Clock

	workers   int
	workersWG sync.WaitGroup
	timersWG  sync.WaitGroup
	pending   atomic.Int64
	active    atomic.Int32
	runCtx    context.Context
	cancel    context.CancelFunc

	mu     sync.RWMutex
	closed bool

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a queue with the given worker count, buffer size and
// maximum start jitter.
func New(r JourneyRunner, workers, buffer int, jitterMax time.Duration, coll *report.Collector, m *metrics.Metrics, log *zap.SugaredLogger) *Queue {
	return NewWith(r, workers, buffer, jitterMax, coll, m, log, core.RealClock{}, rand.New(rand.NewSource(rand.Int63())))
}

// NewWith creates a queue with custom clock and random source (for testing).
func NewWith(r JourneyRunner, workers, buffer int, jitterMax time.Duration, coll *report.Collector, m *metrics.Metrics, log *zap.SugaredLogger, clock core.Clock, rng *rand.Rand) *Queue {
	return &Queue{
		runner:    r,
		jitterMax: jitterMax,
		jobs:      make(chan *core.Visitor, buffer),
		collector: coll,
		metrics:   m,
		log:       log,
		clock:     clock,
		workers:   workers,
		rng:       rng,
	}
}

// Start launches the worker pool. The passed context bounds the queue's
// whole lifetime; orderly shutdown goes through Stop.
func (q *Queue) Start(ctx context.Context) {
	q.runCtx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.workersWG.Add(1)
		go q.worker(q.runCtx)
	}
}

// Submit accepts one admitted visitor. The visitor becomes eligible for
// execution after a uniformly random delay in [0, jitterMax); the delay
// decorrelates admission time from first-event time.
func (q *Queue) Submit(visitor *core.Visitor) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrStopped
	}

	q.pending.Add(1)
	q.metrics.QueueDepth.Inc()
	q.timersWG.Add(1)
	go q.dispatch(q.runCtx, visitor, q.jitter())
	return nil
}

func (q *Queue) jitter() time.Duration {
	if q.jitterMax <= 0 {
		return 0
	}
	q.rngMu.Lock()
	defer q.rngMu.Unlock()
	return time.Duration(q.rng.Int63n(int64(q.jitterMax)))
}

// dispatch waits out the start jitter, then enqueues the visitor. A full
// buffer drops the admission.
func (q *Queue) dispatch(ctx context.Context, visitor *core.Visitor, delay time.Duration) {
	defer q.timersWG.Done()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			q.pending.Add(-1)
			q.metrics.QueueDepth.Dec()
			return
		case <-timer.C:
		}
	}

	select {
	case q.jobs <- visitor:
	default:
		q.pending.Add(-1)
		q.metrics.QueueDepth.Dec()
		q.metrics.AdmissionsDropped.Inc()
		q.log.Warnw("queue full, dropping admission", "visitor", visitor.ID)
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.workersWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case visitor, ok := <-q.jobs:
			if !ok {
				return
			}
			q.pending.Add(-1)
			q.metrics.QueueDepth.Dec()
			q.runOne(ctx, visitor)
		}
	}
}

func (q *Queue) runOne(ctx context.Context, visitor *core.Visitor) {
	q.active.Add(1)
	q.metrics.ActiveRunners.Inc()
	defer func() {
		q.active.Add(-1)
		q.metrics.ActiveRunners.Dec()
	}()

	result, err := q.runner.Run(ctx, visitor)
	if err != nil && errors.Is(err, context.Canceled) {
		// Abandoned during shutdown; carries no durability obligation.
		q.log.Debugw("journey abandoned", "visitor", visitor.ID,
			"events_processed", result.EventsProcessed)
		return
	}

	q.metrics.EventsEmitted.Add(float64(result.EventsProcessed))
	if err != nil {
		q.metrics.JourneysFailed.Inc()
		q.log.Warnw("journey failed", "visitor", visitor.ID, "error", err)
	} else {
		q.metrics.JourneysCompleted.Inc()
		q.log.Infow("journey completed",
			"visitor", visitor.ID,
			"events_processed", result.EventsProcessed,
			"duration", result.Duration,
		)
	}

	q.collector.Report(report.Outcome{
		Result:     result,
		Err:        err,
		FinishedAt: q.clock.Now(),
	})
}

// Depth returns the number of admitted visitors not yet executing.
func (q *Queue) Depth() int {
	return int(q.pending.Load())
}

// ActiveRunners returns the number of journeys currently executing.
func (q *Queue) ActiveRunners() int {
	return int(q.active.Load())
}

// Stop rejects further submissions, lets in-flight journeys finish within
// the grace period, then force-cancels whatever remains.
func (q *Queue) Stop(grace time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// Once no dispatch goroutine can send anymore, closing the job
	// channel drains the workers.
	go func() {
		q.timersWG.Wait()
		close(q.jobs)
	}()

	done := make(chan struct{})
	go func() {
		q.workersWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		q.log.Warnw("grace period elapsed, abandoning in-flight journeys",
			"active", q.ActiveRunners())
		q.cancel()
		<-done
	}
	q.cancel()
}
