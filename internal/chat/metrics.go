// internal/chat/metrics.go

package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	realtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_realtime_events_total",
			Help: "Realtime events applied, by kind",
		},
		[]string{"kind"},
	)

	pagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_pages_merged_total",
			Help: "Message pages merged into the store, by merge mode",
		},
		[]string{"mode"},
	)

	staleResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_stale_page_results_total",
			Help: "Page results dropped because the chat was no longer active",
		},
	)

	unreadIncrementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_unread_increments_total",
			Help: "Client-local unread counter increments",
		},
	)

	markReadFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_mark_read_failures_total",
			Help: "Failed mark-as-read requests",
		},
	)

	malformedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_malformed_events_total",
			Help: "Realtime payloads dropped because they failed to decode or validate",
		},
	)
)
