// Package pacing decides, once per tick, whether to admit a new synthetic
// visitor so that cumulative admissions converge toward the hourly target
// without bursting.
package pacing

import (
	"math/rand"
	"sync"
	"time"

	"github.com/Openpanel-dev/mock/internal/config"
	"github.com/Openpanel-dev/mock/internal/core"
	"github.com/Openpanel-dev/mock/internal/counter"
)

const (
	// maxSpawnRate caps the per-tick admission probability. It is the
	// backpressure valve that prevents a thundering herd when the needed
	// visitor count is large relative to the time left in the hour.
	maxSpawnRate = 0.1

	// Jitter factor is drawn uniformly from [jitterMin, jitterMin+jitterSpan).
	jitterMin  = 0.5
	jitterSpan = 1.0
)

// Decision is the outcome of one pacing evaluation. Ephemeral: logged per
// tick, never persisted.
type Decision struct {
	Hour             int
	TargetVisitors   int
	CurrentVisitors  int
	VisitorsNeeded   int
	RemainingSeconds int
	SpawnRate        float64
	AdjustedRate     float64
	Spawn            bool
}

// Controller evaluates the admission probability model. It has no side
// effects beyond reading the counter store.
type Controller struct {
	profile config.HourlyProfile
	store   counter.Store
	clock   core.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

// NewController creates a controller with a real clock and a seeded
// random source.
func NewController(profile config.HourlyProfile, store counter.Store) *Controller {
	return NewControllerWith(profile, store, core.RealClock{}, rand.New(rand.NewSource(rand.Int63())))
}

// NewControllerWith creates a controller with custom clock and random
// source (for testing).
func NewControllerWith(profile config.HourlyProfile, store counter.Store, clock core.Clock, rng *rand.Rand) *Controller {
	return &Controller{
		profile: profile,
		store:   store,
		clock:   clock,
		rng:     rng,
	}
}

// Evaluate runs the probability model for the current instant. A store
// error is returned as-is; the caller skips the tick.
func (c *Controller) Evaluate() (Decision, error) {
	now := c.clock.Now()

	current, err := c.store.Count()
	if err != nil {
		return Decision{}, err
	}

	c.mu.Lock()
	jitter := jitterMin + c.rng.Float64()*jitterSpan
	draw := c.rng.Float64()
	c.mu.Unlock()

	target := c.profile.Target(now.Hour())
	return decide(now.Hour(), target, current, remainingSeconds(now), jitter, draw), nil
}

// remainingSeconds returns the seconds until the next hour boundary,
// never less than 1.
func remainingSeconds(now time.Time) int {
	boundary := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location()).
		Add(time.Hour)
	remaining := int(boundary.Sub(now) / time.Second)
	if remaining < 1 {
		remaining = 1
	}
	return remaining
}

// decide is the deterministic core of the model: given fixed inputs and
// fixed random draws it always produces the same decision.
//
// The base rate assumes the remaining visitors arrive uniformly over the
// remaining seconds; the jitter factor perturbs it to decorrelate ticks,
// and the cap bounds worst-case burstiness near the hour boundary.
func decide(hour, target, current, remaining int, jitter, draw float64) Decision {
	d := Decision{
		Hour:             hour,
		TargetVisitors:   target,
		CurrentVisitors:  current,
		RemainingSeconds: remaining,
	}

	// Quota met: no further admissions this hour, even if ticks continue.
	if current >= target {
		return d
	}

	d.VisitorsNeeded = target - current
	d.SpawnRate = float64(d.VisitorsNeeded) / float64(remaining)

	d.AdjustedRate = d.SpawnRate * jitter
	if d.AdjustedRate > maxSpawnRate {
		d.AdjustedRate = maxSpawnRate
	}

	d.Spawn = draw < d.AdjustedRate
	return d
}
