package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messenger_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "messenger_ws_connections_active",
			Help: "Open websocket connections",
		},
	)

	UsersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "messenger_users_online",
			Help: "Users with a registered connection",
		},
	)

	ClientsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_ws_clients_dropped_total",
			Help: "Connections closed by the server",
		},
		[]string{"reason"}, // "overflow", "idle", "shutdown"
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_ws_frames_dropped_total",
			Help: "Outbound frames discarded",
		},
		[]string{"reason"}, // "overflow", "closed"
	)

	// Business metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_events_received_total",
			Help: "Inbound websocket frames by type",
		},
		[]string{"type"},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_events_rejected_total",
			Help: "Inbound frames dropped before dispatch",
		},
		[]string{"reason"}, // "malformed", "unknown_type", "unauthenticated", "invalid", "rate_limited"
	)

	FanoutRecipients = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "messenger_fanout_recipients",
			Help:    "Recipients reached per fan-out",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// Persistence metrics
	PersistQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_persist_tasks_total",
			Help: "Asynchronous persistence tasks by outcome",
		},
		[]string{"op", "result"}, // result: "ok", "error", "dropped"
	)

	PersistLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messenger_persist_latency_seconds",
			Help:    "Asynchronous persistence task latency",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"op"},
	)
)
