package vouchers

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts voucher transitions by outcome. A nil *Metrics records nothing.
type Metrics struct {
	transitions *prometheus.CounterVec
}

// NewMetrics registers the voucher counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unistock_voucher_transitions_total",
		Help: "Voucher create, confirm and cancel attempts by kind and result.",
	}, []string{"kind", "transition", "result"})
	if reg != nil {
		reg.MustRegister(transitions)
	}
	return &Metrics{transitions: transitions}
}

func (m *Metrics) observe(kind Kind, transition string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.transitions.WithLabelValues(string(kind), transition, result).Inc()
}
