// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Purchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_purchases_total",
			Help: "Purchase state transitions by outcome",
		},
		[]string{"outcome"},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_webhook_events_total",
			Help: "Payment gateway webhook events by type and result",
		},
		[]string{"type", "result"},
	)

	Payouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_payouts_total",
			Help: "Payout processing results",
		},
		[]string{"outcome"},
	)

	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_gateway_request_seconds",
			Help:    "Time spent in payment gateway calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_notifications_total",
			Help: "Notification dispatch attempts by channel and result",
		},
		[]string{"channel", "result"},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Purchases, WebhookEvents, Payouts, GatewayLatency, Notifications, HTTPRequests, HTTPDuration)
	})
}
