package health

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type healthMetrics struct {
	checksTotal *prometheus.CounterVec
	checkStatus *prometheus.GaugeVec
}

func newHealthMetrics(namespace string, reg prometheus.Registerer) *healthMetrics {
	factory := promauto.With(reg)
	return &healthMetrics{
		checksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "checks_total",
				Help:      "Total number of readiness checks performed",
			},
			[]string{"check", "status"},
		),
		checkStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "check_status",
				Help:      "Result of the last check (1 healthy, 0.5 degraded, 0 unhealthy)",
			},
			[]string{"check"},
		),
	}
}

func (m *healthMetrics) record(check string, status Status) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(check, string(status)).Inc()

	value := 0.0
	switch status {
	case StatusHealthy:
		value = 1
	case StatusDegraded:
		value = 0.5
	}
	m.checkStatus.WithLabelValues(check).Set(value)
}
