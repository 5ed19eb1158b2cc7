// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratachat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratachat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	// Live connections
	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratachat_live_connections",
			Help: "Open websocket connections",
		},
	)

	HandshakesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratachat_handshakes_rejected_total",
			Help: "Websocket handshakes rejected",
		},
		[]string{"reason"}, // "credential" | "rate" | "origin"
	)

	SlowConsumersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratachat_slow_consumers_dropped_total",
			Help: "Connections dropped because their send buffer was full",
		},
	)

	InboundEventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratachat_inbound_events_rejected_total",
			Help: "Inbound live events answered with an error",
		},
		[]string{"reason"}, // "rate" | "decode" | "command"
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratachat_messages_sent_total",
			Help: "Messages persisted",
		},
		[]string{"channel_kind"}, // "public" | "private" | "direct"
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratachat_notifications_created_total",
			Help: "Notifications persisted",
		},
		[]string{"source"}, // "fanout" | "notify"
	)

	NotificationsPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratachat_notifications_pushed_total",
			Help: "Notifications pushed to a live personal room",
		},
	)

	FanoutFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratachat_fanout_failures_total",
			Help: "Per-member fanout failures (logged and skipped)",
		},
	)

	DirectChannelsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratachat_direct_channels_created_total",
			Help: "Direct conversations created",
		},
	)
)

// ChannelKind labels a channel for MessagesSent.
func ChannelKind(isDirect bool, visibility string) string {
	if isDirect {
		return "direct"
	}
	return visibility
}
