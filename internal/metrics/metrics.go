// Package metrics holds the Prometheus instrumentation for the traffic
// generator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the process counters and gauges with their registry.
type Metrics struct {
	Registry *prometheus.Registry

	Admissions        prometheus.Counter
	TicksSkipped      prometheus.Counter
	AdmissionsDropped prometheus.Counter
	EventsEmitted     prometheus.Counter
	JourneysCompleted prometheus.Counter
	JourneysFailed    prometheus.Counter
	QueueDepth        prometheus.Gauge
	ActiveRunners     prometheus.Gauge
}

// New creates an isolated registry with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Admissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "mock_admissions_total",
			Help: "Visitors admitted by the pacing controller.",
		}),
		TicksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mock_ticks_skipped_total",
			Help: "Pacing ticks skipped due to store or catalog errors.",
		}),
		AdmissionsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mock_admissions_dropped_total",
			Help: "Admitted visitors dropped because the queue was full.",
		}),
		EventsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "mock_events_emitted_total",
			Help: "Events delivered to the analytics sink.",
		}),
		JourneysCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "mock_journeys_completed_total",
			Help: "Visitor journeys that ran to completion.",
		}),
		JourneysFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "mock_journeys_failed_total",
			Help: "Visitor journeys aborted by a sink failure.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mock_queue_depth",
			Help: "Visitors waiting in the admission queue.",
		}),
		ActiveRunners: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mock_active_runners",
			Help: "Visitor journeys currently executing.",
		}),
	}
}
