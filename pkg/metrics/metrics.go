package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// WebSocket metrics
	websocketConnections prometheus.Gauge
	websocketEventsTotal *prometheus.CounterVec

	// Call metrics
	callsTotal        *prometheus.CounterVec
	callTimeoutsTotal prometheus.Counter
	callsRejectedBusy prometheus.Counter
	pendingTimers     prometheus.Gauge

	// Message metrics
	messagesPersistedTotal  prometheus.Counter
	messageSaveRetriesTotal prometheus.Counter
	messageSaveFailedTotal  prometheus.Counter

	// Push notification metrics
	pushNotificationsTotal  *prometheus.CounterVec
	pushNotificationsFailed *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New(serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),
		websocketConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of active WebSocket connections",
				ConstLabels: labels,
			},
		),
		websocketEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_events_total",
				Help:        "Total number of WebSocket events by type and outcome",
				ConstLabels: labels,
			},
			[]string{"event", "outcome"},
		),
		callsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "calls_total",
				Help:        "Total number of call transitions by resulting status",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		callTimeoutsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name:        "call_timeouts_total",
				Help:        "Total number of calls marked missed by the ring timeout",
				ConstLabels: labels,
			},
		),
		callsRejectedBusy: promauto.NewCounter(
			prometheus.CounterOpts{
				Name:        "calls_rejected_busy_total",
				Help:        "Total number of call requests rejected because the target was busy",
				ConstLabels: labels,
			},
		),
		pendingTimers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "call_pending_timers",
				Help:        "Number of armed ring-timeout timers",
				ConstLabels: labels,
			},
		),
		messagesPersistedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name:        "chat_messages_persisted_total",
				Help:        "Total number of chat messages persisted",
				ConstLabels: labels,
			},
		),
		messageSaveRetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name:        "chat_message_save_retries_total",
				Help:        "Total number of chat message persistence retries",
				ConstLabels: labels,
			},
		),
		messageSaveFailedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name:        "chat_message_save_failed_total",
				Help:        "Total number of chat messages dropped after exhausting retries",
				ConstLabels: labels,
			},
		),
		pushNotificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "push_notifications_total",
				Help:        "Total number of push notifications attempted",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		pushNotificationsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "push_notifications_failed_total",
				Help:        "Total number of push notification failures",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
	}
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight request gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight request gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Dec()
}

// WebSocketConnected records a new WebSocket connection
func (m *Metrics) WebSocketConnected() {
	if m == nil {
		return
	}
	m.websocketConnections.Inc()
}

// WebSocketDisconnected records a closed WebSocket connection
func (m *Metrics) WebSocketDisconnected() {
	if m == nil {
		return
	}
	m.websocketConnections.Dec()
}

// RecordWebSocketEvent records an inbound WebSocket event and its outcome
func (m *Metrics) RecordWebSocketEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.websocketEventsTotal.WithLabelValues(event, outcome).Inc()
}

// RecordCallTransition records a call reaching the given status
func (m *Metrics) RecordCallTransition(status string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(status).Inc()
}

// RecordCallTimeout records a call marked missed by the ring timer
func (m *Metrics) RecordCallTimeout() {
	if m == nil {
		return
	}
	m.callTimeoutsTotal.Inc()
}

// RecordBusyRejection records a call request rejected by admission control
func (m *Metrics) RecordBusyRejection() {
	if m == nil {
		return
	}
	m.callsRejectedBusy.Inc()
}

// SetPendingTimers sets the armed ring-timer gauge
func (m *Metrics) SetPendingTimers(n int) {
	if m == nil {
		return
	}
	m.pendingTimers.Set(float64(n))
}

// RecordMessagePersisted records a successfully stored chat message
func (m *Metrics) RecordMessagePersisted() {
	if m == nil {
		return
	}
	m.messagesPersistedTotal.Inc()
}

// RecordMessageSaveRetry records one chat persistence retry
func (m *Metrics) RecordMessageSaveRetry() {
	if m == nil {
		return
	}
	m.messageSaveRetriesTotal.Inc()
}

// RecordMessageSaveFailed records a chat message dropped after all attempts
func (m *Metrics) RecordMessageSaveFailed() {
	if m == nil {
		return
	}
	m.messageSaveFailedTotal.Inc()
}

// RecordPushAttempt records an attempted push notification of the given kind
func (m *Metrics) RecordPushAttempt(kind string) {
	if m == nil {
		return
	}
	m.pushNotificationsTotal.WithLabelValues(kind).Inc()
}

// RecordPushFailure records a failed push notification of the given kind
func (m *Metrics) RecordPushFailure(kind string) {
	if m == nil {
		return
	}
	m.pushNotificationsFailed.WithLabelValues(kind).Inc()
}
