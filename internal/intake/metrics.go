package intake

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the intake consumer.
type Metrics struct {
	Handled     *prometheus.CounterVec
	Retries     prometheus.Counter
	DeadLetters *prometheus.CounterVec
}

// NewMetrics creates and registers the intake metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Handled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idstatus_intake_messages_total",
			Help: "Inbound messages handled, by result",
		}, []string{"result"}),
		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idstatus_intake_retries_total",
			Help: "Attempts repeated after a transient failure",
		}),
		DeadLetters: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idstatus_intake_dead_letters_total",
			Help: "Messages routed to the dead-letter topic, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) incHandled(result string) {
	if m == nil {
		return
	}
	m.Handled.WithLabelValues(result).Inc()
}

func (m *Metrics) incRetry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

func (m *Metrics) incDeadLetter(reason string) {
	if m == nil {
		return
	}
	m.DeadLetters.WithLabelValues(reason).Inc()
}
