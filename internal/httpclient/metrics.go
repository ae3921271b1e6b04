package httpclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// clientMetrics contains Prometheus metrics for outbound requests.
type clientMetrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	breakerState *prometheus.CounterVec
}

func newClientMetrics(namespace string, reg prometheus.Registerer) *clientMetrics {
	factory := promauto.With(reg)
	return &clientMetrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "httpclient",
				Name:      "requests_total",
				Help:      "Total number of outbound HTTP requests",
			},
			[]string{"client", "method", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "httpclient",
				Name:      "request_duration_seconds",
				Help:      "Outbound HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"client", "method"},
		),
		breakerState: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "httpclient",
				Name:      "circuit_breaker_transitions_total",
				Help:      "Circuit breaker state transitions",
			},
			[]string{"client", "from", "to"},
		),
	}
}
