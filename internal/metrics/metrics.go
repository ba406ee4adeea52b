package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shop_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	TxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shop_db_tx_retries_total",
			Help: "Transactions retried after deadlock or serialization failure",
		},
	)

	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Orders committed",
		},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_notifications_total",
			Help: "Order notifications by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shop_notify_breaker_state",
			Help: "Notification circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_logins_total",
			Help: "Identity logins by outcome (created, updated, rejected)",
		},
		[]string{"outcome"},
	)
)
