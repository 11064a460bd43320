// Package metrics provides Prometheus metrics for PulseWatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "pulsewatch"
)

// Evaluator metrics
var (
	// EvaluationsTotal counts alert config evaluations by outcome.
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "evaluations_total",
			Help:      "Total alert config evaluations by outcome",
		},
		[]string{"outcome"},
	)

	// EvaluationDuration tracks EvaluateAll batch latency.
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "batch_duration_seconds",
			Help:      "EvaluateAll batch latency in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// ActiveAlerts tracks the number of currently active alerts.
	ActiveAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "active_alerts",
			Help:      "Number of currently active alerts",
		},
	)
)

// Evaluation outcomes.
const (
	OutcomeTriggered  = "triggered"
	OutcomeResolved   = "resolved"
	OutcomeSuppressed = "suppressed"
	OutcomeNoData     = "no_data"
	OutcomeUnchanged  = "unchanged"
	OutcomeError      = "error"
)

// Notifier metrics
var (
	// NotificationsTotal counts notification sends by channel and result.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "notifications_total",
			Help:      "Total notification sends by channel and result",
		},
		[]string{"channel", "result"},
	)

	// NotificationsDropped counts notifications dropped by rate limiting.
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped due to rate limiting",
		},
	)
)
