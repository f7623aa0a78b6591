package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horde_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "horde_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	PushSubscribersActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "horde_push_subscribers_active",
			Help: "Current number of open push subscriptions",
		},
		[]string{"service"},
	)

	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horde_messages_sent_total",
			Help: "Total number of messages accepted by the store",
		},
		[]string{"service"},
	)

	EventsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horde_events_dispatched_total",
			Help: "Push notifications delivered to subscriber queues",
		},
		[]string{"service"},
	)

	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horde_events_dropped_total",
			Help: "Push notifications dropped due to subscriber backpressure",
		},
		[]string{"service"},
	)
)
