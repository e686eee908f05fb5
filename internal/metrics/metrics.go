package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wirechat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wirechat_connections_active",
			Help: "Registered websocket connections",
		},
	)

	InboundRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_inbound_rate_limited_total",
			Help: "Inbound events rejected by the per-connection rate limit",
		},
	)

	// Fan-out metrics
	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_messages_persisted_total",
			Help: "Messages written to the store",
		},
		[]string{"scope"}, // "room", "private" or "group"
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_events_delivered_total",
			Help: "Events enqueued to subscribers",
		},
		[]string{"kind"},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_delivery_failures_total",
			Help: "Events dropped for a single subscriber",
		},
		[]string{"reason"},
	)

	PipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_pipeline_failures_total",
			Help: "Message publishes that were rejected or failed",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wirechat_store_latency_seconds",
			Help:    "Store write latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .5},
		},
	)
)
