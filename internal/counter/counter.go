// Package counter tracks how many visitors have been admitted during the
// current wall-clock hour.
package counter

import (
	"errors"
	"sync"

	"github.com/Openpanel-dev/mock/internal/core"
)

// ErrStoreUnavailable indicates the underlying store could not be
// reached. Callers skip the current admission opportunity instead of
// crashing; a missed tick only under-spawns, it never over-spawns.
var ErrStoreUnavailable = errors.New("counter store unavailable")

// Store is an hour-scoped admitted-visitor counter. The count resets to
// zero exactly once when the wall-clock hour advances, and is never
// decremented otherwise.
type Store interface {
	// Count returns the admitted count for the current hour.
	Count() (int, error)
	// Increment adds one admission and returns the new count.
	Increment() (int, error)
}

// MemoryStore is the single-process Store implementation: a mutex-guarded
// {hour, count} pair. The rollover check and the mutation happen inside
// the same critical section, so a reset can neither be lost nor applied
// twice across an hour boundary.
type MemoryStore struct {
	mu    sync.Mutex
	clock core.Clock
	hour  int
	count int
}

// NewMemoryStore creates a store pinned to the current hour.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(core.RealClock{})
}

// NewMemoryStoreWithClock creates a store with a custom clock (for testing).
func NewMemoryStoreWithClock(clock core.Clock) *MemoryStore {
	return &MemoryStore{
		clock: clock,
		hour:  clock.Now().Hour(),
	}
}

// rollover must be called with the mutex held.
func (s *MemoryStore) rollover() {
	if h := s.clock.Now().Hour(); h != s.hour {
		s.hour = h
		s.count = 0
	}
}

func (s *MemoryStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()
	return s.count, nil
}

func (s *MemoryStore) Increment() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()
	s.count++
	return s.count, nil
}
