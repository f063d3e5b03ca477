package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	// Turns counts completed turns by action taken.
	// Labels: action (continue, minor_intervention, major_intervention, reset, fallback)
	Turns *prometheus.CounterVec
	// Flags counts raised flags by category.
	// Labels: type
	Flags *prometheus.CounterVec
	// Boundaries counts memory resets by boundary reason.
	// Labels: reason (empty_store, idle_timeout, greeting)
	Boundaries *prometheus.CounterVec
	// Abandoned counts turns cancelled before completion.
	Abandoned prometheus.Counter
	// PersistFailures counts snapshot saves that failed.
	PersistFailures prometheus.Counter
	// Latency measures turn processing time in seconds.
	Latency prometheus.Histogram
}

// NewMetrics creates and registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "response_guard",
			Subsystem: "pipeline",
			Name:      "turns_total",
			Help:      "Total processed turns by intervention action",
		}, []string{"action"}),
		Flags: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "response_guard",
			Subsystem: "pipeline",
			Name:      "flags_total",
			Help:      "Total raised flags by category",
		}, []string{"type"}),
		Boundaries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "response_guard",
			Subsystem: "pipeline",
			Name:      "session_boundaries_total",
			Help:      "Total session boundaries detected by reason",
		}, []string{"reason"}),
		Abandoned: f.NewCounter(prometheus.CounterOpts{
			Namespace: "response_guard",
			Subsystem: "pipeline",
			Name:      "abandoned_turns_total",
			Help:      "Total turns cancelled before completion",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "response_guard",
			Subsystem: "pipeline",
			Name:      "persist_failures_total",
			Help:      "Total memory snapshot saves that failed",
		}),
		Latency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "response_guard",
			Subsystem: "pipeline",
			Name:      "turn_duration_seconds",
			Help:      "Turn processing latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

func (m *Metrics) turn(action string, flagTypes []string, seconds float64) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(action).Inc()
	for _, t := range flagTypes {
		m.Flags.WithLabelValues(t).Inc()
	}
	m.Latency.Observe(seconds)
}

func (m *Metrics) boundary(reason string) {
	if m == nil {
		return
	}
	m.Boundaries.WithLabelValues(reason).Inc()
}

func (m *Metrics) abandoned() {
	if m == nil {
		return
	}
	m.Abandoned.Inc()
}

func (m *Metrics) persistFailed() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}
