package bridge

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts orchestrator outcomes. All methods tolerate a nil receiver
// so callers can run without a registry.
type Metrics struct {
	transfers *prometheus.CounterVec
	repays    prometheus.Counter
	failures  *prometheus.CounterVec
}

// NewMetrics registers the orchestrator counters with the provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loanbridge",
			Name:      "transfers_dispatched_total",
			Help:      "Cross-domain transfers dispatched, by path.",
		}, []string{"path"}),
		repays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loanbridge",
			Name:      "repayments_forwarded_total",
			Help:      "Repayments forwarded to the lending facility.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loanbridge",
			Name:      "external_call_failures_total",
			Help:      "Failed external calls, by collaborator.",
		}, []string{"collaborator"}),
	}
	if reg != nil {
		reg.MustRegister(m.transfers, m.repays, m.failures)
	}
	return m
}

func (m *Metrics) transferDispatched(path string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(path).Inc()
}

func (m *Metrics) repaymentForwarded() {
	if m == nil {
		return
	}
	m.repays.Inc()
}

func (m *Metrics) externalFailure(collaborator string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(collaborator).Inc()
}
