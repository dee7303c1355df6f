package distribution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"idstatus/internal/routing"
)

// Metrics holds Prometheus metrics for distribution.
type Metrics struct {
	Distributions *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

// NewMetrics creates and registers the distribution metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Distributions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idstatus_distribution_total",
			Help: "Distribution attempts, by result",
		}, []string{"result"}),
		Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idstatus_notifications_total",
			Help: "Notifications published, by owner",
		}, []string{"owner"}),
	}
}

func (m *Metrics) incDistribution(result string) {
	if m == nil {
		return
	}
	m.Distributions.WithLabelValues(result).Inc()
}

func (m *Metrics) incNotification(owner routing.Owner) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(owner.String()).Inc()
}
