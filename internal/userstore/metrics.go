package userstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the store's lifecycle, mutation and poll activity.
type Metrics struct {
	putsTotal         *prometheus.CounterVec
	deletesTotal      *prometheus.CounterVec
	pollsTotal        *prometheus.CounterVec
	pollDuration      prometheus.Histogram
	changedUsersTotal prometheus.Counter
	stateGauge        prometheus.Gauge
}

// NewMetrics registers and returns the store's metrics under namespace.
// Safe to call once per process; a second call under the same namespace
// panics on duplicate registration, same as any other promauto metric.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		putsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "userstore",
			Name:      "puts_total",
			Help:      "Total put operations by outcome (created, updated, cache_purge_failed, error)",
		}, []string{"outcome"}),
		deletesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "userstore",
			Name:      "deletes_total",
			Help:      "Total delete operations by outcome",
		}, []string{"outcome"}),
		pollsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "userstore",
			Name:      "polls_total",
			Help:      "Total poll iterations by outcome (completed, skipped, aborted, error)",
		}, []string{"outcome"}),
		pollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "userstore",
			Name:      "poll_duration_seconds",
			Help:      "Duration of a completed poll iteration",
			Buckets:   prometheus.DefBuckets,
		}),
		changedUsersTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "userstore",
			Name:      "changed_users_total",
			Help:      "Total usernames reported changed across all poll iterations",
		}),
		stateGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "userstore",
			Name:      "state",
			Help:      "Current lifecycle state: 0=INITIALIZED 1=STARTING 2=STARTED 3=STOPPING 4=STOPPED 5=FAILED",
		}),
	}
}
