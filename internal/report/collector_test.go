package report

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Openpanel-dev/mock/internal/core"
)

func TestCollector_Aggregates(t *testing.T) {
	c := NewCollector(10)

	c.Report(Outcome{
		Result:     core.RunResult{VisitorID: "a", EventsProcessed: 3, Duration: time.Second},
		FinishedAt: time.Now(),
	})
	c.Report(Outcome{
		Result:     core.RunResult{VisitorID: "b", EventsProcessed: 1, Duration: time.Second},
		Err:        errors.New("sink unavailable"),
		FinishedAt: time.Now(),
	})
	c.Close()

	summary := c.Summary()
	if summary.Completed != 1 {
		t.Errorf("expected 1 completed, got %d", summary.Completed)
	}
	if summary.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", summary.Failed)
	}
	// Partial progress from failed journeys still counts emitted events.
	if summary.EventsEmitted != 4 {
		t.Errorf("expected 4 events emitted, got %d", summary.EventsEmitted)
	}
}

func TestCollector_HistoryBounded(t *testing.T) {
	c := NewCollector(5)

	for i := 0; i < 20; i++ {
		c.Report(Outcome{
			Result:     core.RunResult{VisitorID: fmt.Sprintf("v%d", i), EventsProcessed: 1},
			FinishedAt: time.Now(),
		})
	}
	c.Close()

	recent := c.Recent()
	if len(recent) != 5 {
		t.Fatalf("expected history of 5, got %d", len(recent))
	}
	// Oldest entries are evicted first.
	if recent[0].Result.VisitorID != "v15" || recent[4].Result.VisitorID != "v19" {
		t.Errorf("unexpected history window: %s..%s",
			recent[0].Result.VisitorID, recent[4].Result.VisitorID)
	}

	summary := c.Summary()
	if summary.Completed != 20 {
		t.Errorf("aggregates must cover evicted history, got %d", summary.Completed)
	}
}

func TestCollector_RecentReturnsCopy(t *testing.T) {
	c := NewCollector(5)
	c.Report(Outcome{Result: core.RunResult{VisitorID: "a"}, FinishedAt: time.Now()})
	c.Close()

	recent := c.Recent()
	recent[0].Result.VisitorID = "mutated"
	if c.Recent()[0].Result.VisitorID != "a" {
		t.Error("Recent must return a copy of the history")
	}
}
