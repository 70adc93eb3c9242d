package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blip_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blip_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blip_messages_sent_total",
			Help: "Total messages persisted",
		},
	)

	PushesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blip_pushes_delivered_total",
			Help: "Total live pushes handed to a recipient connection",
		},
	)

	PushesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blip_pushes_dropped_total",
			Help: "Total pushes skipped because the recipient was offline or slow",
		},
	)

	MessagesSeen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blip_messages_seen_total",
			Help: "Total seen-state updates",
		},
		[]string{"mode"}, // "bulk" or "single"
	)

	// Connection metrics
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blip_connected_clients",
			Help: "Currently connected websocket clients",
		},
	)
)
