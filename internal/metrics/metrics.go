// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SwapTransitions counts swap requests entering each status.
	SwapTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_swap_request_transitions_total",
		Help: "Swap requests entering each status",
	}, []string{"status"})

	// Notifications counts notification deliveries by type and outcome.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_notifications_total",
		Help: "Notification deliveries by type and outcome",
	}, []string{"type", "outcome"})

	// HTTPRequests counts served requests by route pattern, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status"})

	// HTTPDuration records request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skillswap_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// RateLimited counts requests refused by a rate limiter, by scope.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_rate_limited_total",
		Help: "Requests refused by rate limiting",
	}, []string{"scope"})

	// StreamConnections is the number of open profile stream websockets.
	StreamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skillswap_stream_connections",
		Help: "Open profile stream websocket connections",
	})
)

// Notification outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// RecordTransition counts a swap request entering status.
func RecordTransition(status string) {
	SwapTransitions.WithLabelValues(status).Inc()
}

// RecordNotification counts a notification outcome.
func RecordNotification(kind, outcome string) {
	Notifications.WithLabelValues(kind, outcome).Inc()
}

// ObserveHTTP records one served request.
func ObserveHTTP(route, method string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
