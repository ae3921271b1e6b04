package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Match outcomes used as metric label values.
const (
	outcomeMatched  = "matched"
	outcomeRedirect = "redirect"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
	outcomeCanceled = "canceled"
)

// matchMetrics contains Prometheus metrics for route matching.
type matchMetrics struct {
	matches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newMatchMetrics creates the metrics and registers them with reg. A nil
// registerer leaves them unregistered.
func newMatchMetrics(namespace string, reg prometheus.Registerer) *matchMetrics {
	factory := promauto.With(reg)
	return &matchMetrics{
		matches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "matches_total",
				Help:      "Total number of route matches by outcome",
			},
			[]string{"outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "match_duration_seconds",
				Help:      "Route match duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"outcome"},
		),
	}
}
