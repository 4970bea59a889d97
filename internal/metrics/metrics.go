// Package metrics holds the Prometheus collectors of the chat server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive is the number of open websocket connections.
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Number of open websocket connections",
		},
	)

	// RoomWorkersActive is the number of live room workers.
	RoomWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_room_workers_active",
			Help: "Number of running room workers",
		},
	)

	// EventsTotal counts inbound websocket events by type and outcome.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_total",
			Help: "Total number of inbound websocket events",
		},
		[]string{"type", "outcome"},
	)

	MessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of chat messages broadcast",
		},
	)

	// PersistFailuresTotal counts messages that were broadcast but not stored.
	PersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_persist_failures_total",
			Help: "Total number of messages that failed to persist",
		},
	)

	HistoryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_history_failures_total",
			Help: "Total number of failed history reads on join",
		},
	)

	// TaskPanicsTotal counts recovered panics in room workers.
	TaskPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_task_panics_total",
			Help: "Total number of recovered room task panics",
		},
	)

	// TaskDuration tracks how long a room task takes.
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_task_duration_seconds",
			Help:    "Duration of room worker tasks in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"op"},
	)
)

// Outcomes for EventsTotal.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeLimited  = "rate_limited"
)

func RecordEvent(eventType, outcome string) {
	EventsTotal.WithLabelValues(eventType, outcome).Inc()
}
