// Package metrics exposes Prometheus instrumentation for the data-access
// layer. All methods are nil-safe so instrumentation stays optional.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for store operations and subscriptions.
type Metrics struct {
	operations    *prometheus.CounterVec
	retries       prometheus.Counter
	subscriptions prometheus.Gauge
}

// New creates the collectors and registers them with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storekit_operations_total",
			Help: "Store operations issued, by collection, operation and outcome.",
		}, []string{"collection", "operation", "outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storekit_retries_total",
			Help: "Retry attempts performed against the store.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storekit_active_subscriptions",
			Help: "Currently active realtime subscriptions.",
		}),
	}
	reg.MustRegister(m.operations, m.retries, m.subscriptions)
	return m
}

// ObserveOperation records one completed store operation.
func (m *Metrics) ObserveOperation(collection, operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(collection, operation, outcome).Inc()
}

// ObserveRetry records one retry attempt.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// SetActiveSubscriptions records the current subscription count.
func (m *Metrics) SetActiveSubscriptions(n int) {
	if m == nil {
		return
	}
	m.subscriptions.Set(float64(n))
}
