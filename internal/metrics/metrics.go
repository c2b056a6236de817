package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for record operations.
type Metrics struct {
	// Operations by collection, operation and outcome ("ok" or an error kind)
	Operations *prometheus.CounterVec

	// Operation latency by collection and operation
	OperationLatency *prometheus.HistogramVec

	// Status writes by collection and resulting status
	StatusChanges *prometheus.CounterVec
}

// New creates the record metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rental_record_operations_total",
			Help: "Total record lifecycle operations by collection, operation and outcome",
		}, []string{"collection", "operation", "outcome"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rental_record_operation_duration_seconds",
			Help:    "Duration of record lifecycle operations including store round-trips",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"collection", "operation"}),

		StatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rental_record_status_changes_total",
			Help: "Total status changes applied to records",
		}, []string{"collection", "status"}),
	}
}

// ObserveOperation records one finished operation.
func (m *Metrics) ObserveOperation(collection, operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(collection, operation, outcome).Inc()
	m.OperationLatency.WithLabelValues(collection, operation).Observe(d.Seconds())
}

// IncrementStatusChange records a status transition.
func (m *Metrics) IncrementStatusChange(collection, status string) {
	if m != nil {
		m.StatusChanges.WithLabelValues(collection, status).Inc()
	}
}
