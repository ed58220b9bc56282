// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "murmur_online_users",
			Help: "Number of users holding a live websocket connection.",
		},
	)

	RealtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "murmur_realtime_events_total",
			Help: "Realtime events by name and outcome (delivered, dropped).",
		},
		[]string{"event", "outcome"},
	)

	MessageTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "murmur_message_transitions_total",
			Help: "Message lifecycle transitions applied to the store.",
		},
		[]string{"transition"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "murmur_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "murmur_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

const (
	OutcomeDelivered = "delivered"
	OutcomeDropped   = "dropped"
)

func init() {
	prometheus.MustRegister(OnlineUsers)
	prometheus.MustRegister(RealtimeEvents)
	prometheus.MustRegister(MessageTransitions)
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
}
