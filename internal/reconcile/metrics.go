package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reconciliation engine.
type Metrics struct {
	Reconciled  *prometheus.CounterVec
	Duration    prometheus.Histogram
	Resolutions *prometheus.CounterVec
}

// NewMetrics creates and registers the engine metrics. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		Reconciled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idstatus_reconcile_total",
			Help: "Verification facts reconciled, by outcome",
		}, []string{"outcome"}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "idstatus_reconcile_duration_seconds",
			Help:    "Time to reconcile one verification fact, including resolution",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idstatus_resolution_total",
			Help: "Application reference lookups, by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveReconcile records one reconcile call.
func (m *Metrics) ObserveReconcile(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Reconciled.WithLabelValues(outcome).Inc()
	m.Duration.Observe(elapsed.Seconds())
}

// IncResolution counts one resolver outcome.
func (m *Metrics) IncResolution(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}
