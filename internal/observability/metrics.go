package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters for the alert pipeline.
type Metrics struct {
	AlertsIngested prometheus.Counter
	AlertsCreated  prometheus.Counter
	AlertsUpdated  prometheus.Counter
	AlertsEvicted  prometheus.Counter
	AlertsSkipped  prometheus.Counter // store-write failures within a batch

	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter

	TriggerRuns   *prometheus.CounterVec // labels: trigger={foreground,periodic,location}, outcome={ok,noop,error}
	SnapshotsSent prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.AlertsIngested,
		m.AlertsCreated,
		m.AlertsUpdated,
		m.AlertsEvicted,
		m.AlertsSkipped,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.TriggerRuns,
		m.SnapshotsSent,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so parallel
// tests do not trip "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		AlertsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alertfeed",
			Name:      "alerts_ingested_total",
			Help:      "Raw alerts handed to the ingestion coordinator.",
		}),
		AlertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alertfeed",
			Name:      "alerts_created_total",
			Help:      "Alerts newly created in a subscriber feed.",
		}),
		AlertsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alertfeed",
			Name:      "alerts_updated_total",
			Help:      "Alerts re-ingested onto an existing feed entry.",
		}),
		AlertsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alertfeed",
			Name:      "alerts_evicted_total",
			Help:      "Feed entries evicted by the capacity bound.",
		}),
		AlertsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alertfeed",
			Name:      "alerts_skipped_total",
			Help:      "Alerts skipped due to a store-write failure.",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alertfeed",
			Name:      "notifications_sent_total",
			Help:      "Local notifications delivered for created alerts.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alertfeed",
			Name:      "notifications_failed_total",
			Help:      "Notification deliveries that failed (non-fatal).",
		}),
		TriggerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alertfeed",
			Name:      "trigger_runs_total",
			Help:      "Trigger firings by trigger type and outcome.",
		}, []string{"trigger", "outcome"}),
		SnapshotsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alertfeed",
			Name:      "snapshots_sent_total",
			Help:      "Feed snapshots published to change-feed observers.",
		}),
	}
}
