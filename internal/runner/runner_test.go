package runner

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Openpanel-dev/mock/internal/core"
)

// recordingSink captures tracked events in order.
type recordingSink struct {
	mu     sync.Mutex
	names  []string
	props  []map[string]any
	times  []time.Time
	failAt int // fail on the nth call (1-indexed), 0 = never
	err    error
}

func (s *recordingSink) Track(ctx context.Context, v *core.Visitor, name string, properties map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.names)+1 == s.failAt {
		return s.err
	}
	s.names = append(s.names, name)
	s.props = append(s.props, properties)
	s.times = append(s.times, time.Now())
	return nil
}

func newTestRunner(sink core.EventSink, min, max time.Duration) *Runner {
	return NewWith(sink, min, max, zap.NewNop().Sugar(), core.RealClock{}, rand.New(rand.NewSource(3)))
}

func testVisitor(referrer string, events ...core.Event) *core.Visitor {
	return &core.Visitor{
		ID:        "visitor_test",
		SpawnedAt: time.Now(),
		Journey:   core.Journey{Referrer: referrer, Events: events},
		UserAgent: "Mozilla/5.0 (test)",
		IPAddress: "203.0.113.9",
	}
}

func TestRunner_EmitsEventsInOrder(t *testing.T) {
	sink := &recordingSink{}
	r := newTestRunner(sink, 0, 0)

	v := testVisitor("direct",
		core.Event{Name: "screen_view", Properties: map[string]any{"path": "/", "page_title": "Home"}},
		core.Event{Name: "add_to_cart", Properties: map[string]any{"price": 49.99}},
		core.Event{Name: "checkout", Properties: map[string]any{"items": 1}},
	)

	result, err := r.Run(context.Background(), v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EventsProcessed != 3 {
		t.Errorf("expected 3 events processed, got %d", result.EventsProcessed)
	}

	want := []string{"screen_view", "add_to_cart", "checkout"}
	if len(sink.names) != len(want) {
		t.Fatalf("expected %d tracked events, got %d", len(want), len(sink.names))
	}
	for i, name := range want {
		if sink.names[i] != name {
			t.Errorf("event %d: expected %s, got %s", i, name, sink.names[i])
		}
	}
}

func TestRunner_InterEventDelayWithinBounds(t *testing.T) {
	sink := &recordingSink{}
	r := newTestRunner(sink, 20*time.Millisecond, 60*time.Millisecond)

	v := testVisitor("direct",
		core.Event{Name: "screen_view", Properties: map[string]any{"path": "/"}},
		core.Event{Name: "screen_view", Properties: map[string]any{"path": "/products"}},
		core.Event{Name: "screen_view", Properties: map[string]any{"path": "/cart"}},
	)

	if _, err := r.Run(context.Background(), v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i < len(sink.times); i++ {
		gap := sink.times[i].Sub(sink.times[i-1])
		if gap < 20*time.Millisecond {
			t.Errorf("gap %d was %v, below the configured minimum", i, gap)
		}
		// Generous upper bound: scheduling adds slack on top of the delay.
		if gap > 500*time.Millisecond {
			t.Errorf("gap %d was %v, far above the configured maximum", i, gap)
		}
	}
}

func TestRunner_SinkFailureAbortsJourney(t *testing.T) {
	sinkErr := errors.New("sink unavailable")
	sink := &recordingSink{failAt: 2, err: sinkErr}
	r := newTestRunner(sink, 0, 0)

	v := testVisitor("direct",
		core.Event{Name: "screen_view", Properties: map[string]any{"path": "/"}},
		core.Event{Name: "add_to_cart", Properties: nil},
		core.Event{Name: "checkout", Properties: nil},
	)

	result, err := r.Run(context.Background(), v)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected wrapped sink error, got %v", err)
	}
	if result.EventsProcessed != 1 {
		t.Errorf("expected 1 event processed before abort, got %d", result.EventsProcessed)
	}
	if len(sink.names) != 1 {
		t.Errorf("expected no events after the failure, got %d", len(sink.names))
	}
}

func TestRunner_ContextCancellation(t *testing.T) {
	sink := &recordingSink{}
	r := newTestRunner(sink, time.Minute, time.Minute)

	v := testVisitor("direct",
		core.Event{Name: "screen_view", Properties: map[string]any{"path": "/"}},
		core.Event{Name: "screen_view", Properties: map[string]any{"path": "/products"}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, v)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNormalizeProperties_ScreenView(t *testing.T) {
	event := core.Event{
		Name: "screen_view",
		Properties: map[string]any{
			"path":       "/",
			"page_title": "Home",
		},
	}

	props := NormalizeProperties(event, "direct")

	if props["__path"] != "/" {
		t.Errorf("expected __path %q, got %v", "/", props["__path"])
	}
	if props["__title"] != "Home" {
		t.Errorf("expected __title %q, got %v", "Home", props["__title"])
	}
	if _, ok := props["path"]; ok {
		t.Error("path must not appear in emitted properties")
	}
	if _, ok := props["page_title"]; ok {
		t.Error("page_title must not appear in emitted properties")
	}
	if _, ok := props["__referrer"]; ok {
		t.Error("direct referrer must not produce __referrer")
	}
}

func TestNormalizeProperties_StripsNavigationFromOtherEvents(t *testing.T) {
	// Malformed catalog entry: navigation keys on a non-screen_view event.
	event := core.Event{
		Name: "add_to_cart",
		Properties: map[string]any{
			"path":       "/products/sneakers",
			"page_title": "Sneakers",
			"price":      99.99,
		},
	}

	props := NormalizeProperties(event, "https://google.com")

	if _, ok := props["path"]; ok {
		t.Error("path must be stripped from non-screen_view events")
	}
	if _, ok := props["page_title"]; ok {
		t.Error("page_title must be stripped from non-screen_view events")
	}
	if _, ok := props["__path"]; ok {
		t.Error("__path must not be synthesized for non-screen_view events")
	}
	if props["price"] != 99.99 {
		t.Errorf("expected price preserved, got %v", props["price"])
	}
	if props["__referrer"] != "https://google.com" {
		t.Errorf("expected __referrer attached, got %v", props["__referrer"])
	}
}

func TestNormalizeProperties_DoesNotMutateTemplate(t *testing.T) {
	event := core.Event{
		Name:       "screen_view",
		Properties: map[string]any{"path": "/", "page_title": "Home"},
	}

	NormalizeProperties(event, "https://google.com")

	if event.Properties["path"] != "/" || event.Properties["page_title"] != "Home" {
		t.Error("normalization must not mutate the shared journey template")
	}
}
