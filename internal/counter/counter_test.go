package counter

import (
	"sync"
	"testing"
	"time"

	"github.com/Openpanel-dev/mock/internal/core"
)

func TestMemoryStore_Increment(t *testing.T) {
	clock := core.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStoreWithClock(clock)

	for i := 1; i <= 5; i++ {
		n, err := store.Increment()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != i {
			t.Errorf("expected count %d, got %d", i, n)
		}
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 5 {
		t.Errorf("expected count 5, got %d", count)
	}
}

func TestMemoryStore_RolloverResetsCount(t *testing.T) {
	clock := core.NewFakeClock(time.Date(2025, 6, 1, 12, 59, 59, 0, time.UTC))
	store := NewMemoryStoreWithClock(clock)

	for i := 0; i < 7; i++ {
		if _, err := store.Increment(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Crossing the hour boundary resets the count exactly once; the
	// first post-rollover increment yields 1, not previousCount+1.
	clock.Set(time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC))
	n, err := store.Increment()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected post-rollover count 1, got %d", n)
	}
}

func TestMemoryStore_RolloverOnRead(t *testing.T) {
	clock := core.NewFakeClock(time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC))
	store := NewMemoryStoreWithClock(clock)

	if _, err := store.Increment(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(time.Hour)
	count, err := store.Count()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected count 0 after rollover, got %d", count)
	}
}

func TestMemoryStore_NoResetWithinHour(t *testing.T) {
	clock := core.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStoreWithClock(clock)

	if _, err := store.Increment(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(59 * time.Minute)
	count, err := store.Count()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1 within same hour, got %d", count)
	}
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	clock := core.NewFakeClock(time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC))
	store := NewMemoryStoreWithClock(clock)

	const goroutines = 10
	const perGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if _, err := store.Increment(); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	count, err := store.Count()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != goroutines*perGoroutine {
		t.Errorf("expected count %d, got %d", goroutines*perGoroutine, count)
	}
}
