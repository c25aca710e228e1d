// Package metrics defines the Prometheus metric vectors shared across the
// native user store's infrastructure components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DatabaseMetrics tracks the backing document store's connection pool and
// query performance. Populated by the PrometheusExporter in
// internal/database/postgres/prometheus.go.
type DatabaseMetrics struct {
	ConnectionsActive             prometheus.Gauge
	ConnectionsIdle                prometheus.Gauge
	ConnectionsTotal               prometheus.Counter
	ConnectionWaitDurationSeconds prometheus.Histogram
	QueryDurationSeconds           *prometheus.HistogramVec
	QueriesTotal                   *prometheus.CounterVec
	ErrorsTotal                     *prometheus.CounterVec
}

// NewDatabaseMetrics registers and returns the database pool metrics under
// the given namespace.
func NewDatabaseMetrics(namespace string) *DatabaseMetrics {
	return &DatabaseMetrics{
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "infra_db",
			Name:      "connections_active",
			Help:      "Number of active database connections currently in use",
		}),
		ConnectionsIdle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "infra_db",
			Name:      "connections_idle",
			Help:      "Number of idle database connections in the pool",
		}),
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "infra_db",
			Name:      "connections_total",
			Help:      "Total number of database connections created",
		}),
		ConnectionWaitDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "infra_db",
			Name:      "connection_wait_duration_seconds",
			Help:      "Time spent waiting for a connection from the pool",
			Buckets:   prometheus.DefBuckets,
		}),
		QueryDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "infra_db",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "infra_db",
			Name:      "queries_total",
			Help:      "Total number of queries executed",
		}, []string{"operation", "status"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "infra_db",
			Name:      "errors_total",
			Help:      "Total number of database errors",
		}, []string{"operation"}),
	}
}

// RetryMetrics tracks retry-with-backoff operations across the resilience
// package's WithRetry helper.
type RetryMetrics struct {
	AttemptsTotal      *prometheus.CounterVec
	DurationSeconds    *prometheus.HistogramVec
	BackoffSeconds     *prometheus.HistogramVec
	FinalAttemptsTotal *prometheus.HistogramVec
}

// NewRetryMetrics registers and returns retry metrics under the given
// namespace.
func NewRetryMetrics(namespace string) *RetryMetrics {
	return &RetryMetrics{
		AttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Total retry attempts by operation and outcome",
		}, []string{"operation", "outcome", "error_type"}),
		DurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "duration_seconds",
			Help:      "Duration of a retried operation from first attempt to final outcome",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		BackoffSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "backoff_seconds",
			Help:      "Backoff delay applied between retry attempts",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		FinalAttemptsTotal: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "final_attempts",
			Help:      "Number of attempts taken before an operation reached its final outcome",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
		}, []string{"operation", "outcome"}),
	}
}

// RecordAttempt records one retry attempt's outcome and the duration the
// attempt took.
func (m *RetryMetrics) RecordAttempt(operation, outcome, errorType string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(operation, outcome, errorType).Inc()
	m.DurationSeconds.WithLabelValues(operation, outcome).Observe(durationSeconds)
}

// RecordBackoff records a single backoff delay applied before a retry.
func (m *RetryMetrics) RecordBackoff(operation string, delaySeconds float64) {
	if m == nil {
		return
	}
	m.BackoffSeconds.WithLabelValues(operation).Observe(delaySeconds)
}

// RecordFinalAttempt records how many attempts an operation took before
// reaching its final outcome.
func (m *RetryMetrics) RecordFinalAttempt(operation, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.FinalAttemptsTotal.WithLabelValues(operation, outcome).Observe(float64(attempts))
}
