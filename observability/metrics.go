package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RentalMetrics records marketplace action activity for the /metrics
// endpoint.
type RentalMetrics struct {
	actions *prometheus.CounterVec
	errors  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

var (
	rentalMetricsOnce sync.Once
	rentalRegistry    *RentalMetrics
)

// Rental returns the lazily-initialised metrics registry used to record
// rental action activity.
func Rental() *RentalMetrics {
	rentalMetricsOnce.Do(func() {
		rentalRegistry = &RentalMetrics{
			actions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "leasehub",
				Subsystem: "rental",
				Name:      "actions_total",
				Help:      "Total rental actions segmented by action and outcome.",
			}, []string{"action", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "leasehub",
				Subsystem: "rental",
				Name:      "errors_total",
				Help:      "Total rental action failures segmented by action.",
			}, []string{"action"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "leasehub",
				Subsystem: "rental",
				Name:      "action_duration_seconds",
				Help:      "Latency of rental actions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"action"}),
		}
		prometheus.MustRegister(rentalRegistry.actions, rentalRegistry.errors, rentalRegistry.latency)
	})
	return rentalRegistry
}

// Observe records one completed action with its outcome and duration.
func (m *RentalMetrics) Observe(action string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(action).Inc()
	}
	m.actions.WithLabelValues(action, outcome).Inc()
	m.latency.WithLabelValues(action).Observe(time.Since(start).Seconds())
}
