// Package metrics exposes engine activity as Prometheus collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/splice/internal/engine"
)

const namespace = "splice"

// Metrics holds the engine collectors. Attach them with Hooks.
type Metrics struct {
	passes          *prometheus.CounterVec
	instructions    *prometheus.CounterVec
	calls           *prometheus.CounterVec
	passErrors      prometheus.Counter
	boundaryUpdates *prometheus.CounterVec
	rerenderCaps    *prometheus.CounterVec
	passDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "passes_total",
				Help:      "Committed render passes.",
			},
			[]string{"host"},
		),
		instructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "instructions_total",
				Help:      "Committed output instructions.",
			},
			[]string{"host", "op"},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "calls_total",
				Help:      "Fired lifecycle and ref calls.",
			},
			[]string{"host", "kind"},
		),
		passErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "pass_errors_total",
				Help:      "Aborted passes.",
			},
		),
		boundaryUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "boundary",
				Name:      "updates_total",
				Help:      "Boundary update decisions.",
			},
			[]string{"rendered"},
		),
		rerenderCaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "boundary",
				Name:      "rerender_cap_total",
				Help:      "Render loops stopped by the rerender cap.",
			},
			[]string{"component"},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "pass_duration_seconds",
				Help:      "Time spent committing a pass.",
				Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
			},
			[]string{"host"},
		),
	}
	for _, c := range []prometheus.Collector{
		m.passes, m.instructions, m.calls, m.passErrors,
		m.boundaryUpdates, m.rerenderCaps, m.passDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns engine hooks feeding the collectors.
func (m *Metrics) Hooks() engine.Hooks {
	return engine.Hooks{
		OnBoundaryUpdate: m.boundaryUpdated,
		OnRerenderCap:    m.rerenderCapped,
		OnPassCommitted:  m.passCommitted,
		OnPassError:      m.passFailed,
	}
}

func (m *Metrics) passCommitted(rec engine.PassRecord) {
	m.passes.WithLabelValues(rec.Host).Inc()
	for _, in := range rec.Instructions {
		m.instructions.WithLabelValues(rec.Host, string(in.Op)).Inc()
	}
	for _, c := range rec.Calls {
		m.calls.WithLabelValues(rec.Host, string(c.Kind)).Inc()
	}
	m.passDuration.WithLabelValues(rec.Host).Observe(rec.Duration.Seconds())
}

func (m *Metrics) passFailed(string, error) { m.passErrors.Inc() }

func (m *Metrics) boundaryUpdated(_ *engine.Boundary, rendered bool) {
	m.boundaryUpdates.WithLabelValues(strconv.FormatBool(rendered)).Inc()
}

func (m *Metrics) rerenderCapped(b *engine.Boundary, _ *engine.RerenderCapExceeded) {
	m.rerenderCaps.WithLabelValues(b.Name()).Inc()
}

// WriteFile writes every metric gathered from g to path in the Prometheus
// text format.
func WriteFile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
