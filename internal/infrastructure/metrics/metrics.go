// Package metrics provides Prometheus metrics for the messaging-api service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"moveon-server/services/messaging-api/internal/domain/realtime"
)

const (
	namespace = "moveon"
	subsystem = "messaging_api"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ConversationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conversations_created_total",
			Help:      "Total conversations created",
		},
	)

	// MessagesSentTotal is labelled by the transport that accepted the message.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "Total messages appended to the ledger",
		},
		[]string{"transport"},
	)

	MessagesReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_read_total",
			Help:      "Total messages transitioned to read",
		},
		[]string{"scope"},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "websocket_connections",
			Help:      "Live websocket connections on this instance",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "online_users",
			Help:      "Users with at least one live connection on this instance",
		},
	)

	PushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "push_total",
			Help:      "Events enqueued to live connections",
		},
		[]string{"event"},
	)

	PushDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "push_dropped_total",
			Help:      "Events dropped because the connection queue was full or closed",
		},
		[]string{"event"},
	)

	InboundFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inbound_frames_total",
			Help:      "Websocket frames received, by type and outcome",
		},
		[]string{"type", "result"},
	)

	StaleConnectionsClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stale_connections_closed_total",
			Help:      "Connections closed by the presence sweeper",
		},
	)

	RemindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "unread_reminders_total",
			Help:      "Unread reminders handed to the notifier",
		},
		[]string{"result"},
	)

	AuthRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "auth_requests_total",
			Help:      "Total authentication attempts",
		},
		[]string{"auth_type", "status"},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

func RecordConversationCreated() {
	ConversationsCreatedTotal.Inc()
}

func RecordMessageSent(transport string) {
	MessagesSentTotal.WithLabelValues(transport).Inc()
}

func RecordMessagesRead(scope string, count int64) {
	if count <= 0 {
		return
	}
	MessagesReadTotal.WithLabelValues(scope).Add(float64(count))
}

func RecordInboundFrame(frameType, result string) {
	InboundFramesTotal.WithLabelValues(frameType, result).Inc()
}

func RecordStaleConnectionClosed() {
	StaleConnectionsClosedTotal.Inc()
}

func RecordReminder(result string) {
	RemindersTotal.WithLabelValues(result).Inc()
}

func RecordAuth(authType, status string) {
	AuthRequestsTotal.WithLabelValues(authType, status).Inc()
}

// GatewayRecorder feeds realtime gateway activity into Prometheus.
type GatewayRecorder struct{}

var _ realtime.Recorder = GatewayRecorder{}

func NewGatewayRecorder() GatewayRecorder {
	return GatewayRecorder{}
}

func (GatewayRecorder) EventPushed(t realtime.EventType) {
	PushTotal.WithLabelValues(string(t)).Inc()
}

func (GatewayRecorder) EventDropped(t realtime.EventType) {
	PushDroppedTotal.WithLabelValues(string(t)).Inc()
}

func (GatewayRecorder) ConnectionsChanged(connections, users int) {
	WebsocketConnections.Set(float64(connections))
	OnlineUsers.Set(float64(users))
}
