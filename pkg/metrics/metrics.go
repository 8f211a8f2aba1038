// Package metrics provides Prometheus metrics for form controls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation strategies used as label values.
const (
	StrategyBuiltIn  = "builtin"
	StrategyResolver = "resolver"
)

// Collector holds the metrics shared by every control created with it.
type Collector struct {
	// Validation metrics
	Validations        *prometheus.CounterVec
	ValidationDuration *prometheus.HistogramVec
	StaleResults       prometheus.Counter

	// Submit metrics
	Submits *prometheus.CounterVec

	// Subscription metrics
	Subscribers   prometheus.Gauge
	Notifications prometheus.Counter
}

// New creates a collector registered with reg.
// A nil reg registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		Validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "form",
				Name:      "validations_total",
				Help:      "Total number of field or schema validation runs",
			},
			[]string{"strategy", "outcome"},
		),
		ValidationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "form",
				Name:      "validation_duration_seconds",
				Help:      "Validation run duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"strategy"},
		),
		StaleResults: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "form",
				Name:      "stale_validation_results_total",
				Help:      "Validation results discarded because the value changed while validating",
			},
		),
		Submits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "form",
				Name:      "submits_total",
				Help:      "Total number of submit attempts",
			},
			[]string{"outcome"},
		),
		Subscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "form",
				Name:      "subscribers",
				Help:      "Number of active form state subscribers",
			},
		),
		Notifications: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "form",
				Name:      "notifications_total",
				Help:      "Total number of subscriber callbacks invoked",
			},
		),
	}
}

// Outcome returns the label value for a validation or submit result.
func Outcome(ok bool) string {
	if ok {
		return "valid"
	}
	return "invalid"
}
