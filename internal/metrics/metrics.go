// Package metrics provides Prometheus metrics for the daemon.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles all collectors so tests can use isolated registries.
type Metrics struct {
	armedTotal     prometheus.Counter
	firedTotal     prometheus.Counter
	cancelAttempts *prometheus.CounterVec

	armed           prometheus.Gauge
	deadlineSeconds prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all collectors on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		armedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hardstop",
			Name:      "armed_total",
			Help:      "Total number of timers armed (including resumes)",
		}),
		firedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hardstop",
			Name:      "fired_total",
			Help:      "Total number of forced shutdowns fired",
		}),
		cancelAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hardstop",
			Name:      "cancel_attempts_total",
			Help:      "Cancellation attempts by result",
		}, []string{"result"}),
		armed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hardstop",
			Name:      "armed",
			Help:      "1 while a timer is armed, 0 otherwise",
		}),
		deadlineSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hardstop",
			Name:      "deadline_seconds",
			Help:      "Unix timestamp of the armed deadline, 0 when unarmed",
		}),
		registry: prometheus.NewRegistry(),
	}

	for _, c := range []prometheus.Collector{
		m.armedTotal, m.firedTotal, m.cancelAttempts, m.armed, m.deadlineSeconds,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return m, nil
}

// RecordArmed notes a newly armed (or resumed) deadline.
func (m *Metrics) RecordArmed(target time.Time) {
	m.armedTotal.Inc()
	m.armed.Set(1)
	m.deadlineSeconds.Set(float64(target.Unix()))
}

// RecordDisarmed notes a cancelled timer.
func (m *Metrics) RecordDisarmed() {
	m.armed.Set(0)
	m.deadlineSeconds.Set(0)
}

// RecordFired notes the terminal shutdown.
func (m *Metrics) RecordFired() {
	m.firedTotal.Inc()
	m.armed.Set(0)
}

// RecordCancelAttempt notes a cancellation attempt with its result
// (accepted, denied, not_armed, already_fired).
func (m *Metrics) RecordCancelAttempt(result string) {
	m.cancelAttempts.WithLabelValues(result).Inc()
}

// Handler returns the scrape endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
