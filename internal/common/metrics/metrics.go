// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_dispatch_attempts_total",
			Help: "Total number of external-channel dispatch attempts",
		},
		[]string{"event_type", "result"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "handoff_dispatch_duration_seconds",
			Help: "Duration of external-channel delivery attempts in seconds",
		},
		[]string{"event_type"},
	)

	ChangeEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_change_events_published_total",
			Help: "Total number of change events published to the realtime feed",
		},
		[]string{"table", "op"},
	)

	ChangeEventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_change_events_applied_total",
			Help: "Total number of change events folded into a session view",
		},
		[]string{"table", "op"},
	)

	NotificationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_notification_transitions_total",
			Help: "Total number of notification status transitions",
		},
		[]string{"type", "to_status"},
	)

	CallLogEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handoff_call_log_entries_total",
			Help: "Total number of call update log entries recorded",
		},
		[]string{"event_type"},
	)
)
