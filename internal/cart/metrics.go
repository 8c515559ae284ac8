package cart

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK    = "ok"
	resultError = "error"
)

type Metrics struct {
	Operations   *prometheus.CounterVec
	StaleRemoved prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_operations_total",
				Help: "Cart operations by kind and result",
			},
			[]string{"op", "result"},
		),
		StaleRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cart_stale_items_removed_total",
				Help: "Cart lines dropped because their product left the catalog",
			},
		),
	}

	reg.MustRegister(m.Operations, m.StaleRemoved)
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := resultOK
	if err != nil {
		result = resultError
	}
	m.Operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) staleRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StaleRemoved.Add(float64(n))
}
