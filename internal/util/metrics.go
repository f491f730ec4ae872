package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_received_total",
		Help: "Total number of orders ingested from shops",
	})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders with every basket placed",
	})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders closed out by tracking",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	PlacementFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_failures_total",
		Help: "Total number of failed channel-group placements",
	}, []string{"reason"})

	MatchResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_resolutions_total",
		Help: "Total number of match resolutions by outcome",
	}, []string{"outcome"})

	CartItemsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_created_total",
		Help: "Total number of cart items materialized",
	})

	CartItemsMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_merged_total",
		Help: "Total number of cart aggregations merged into an existing line",
	})

	AdapterCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adapter_calls_total",
		Help: "Total number of adapter invocations",
	}, []string{"operation", "outcome"})

	AdapterCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adapter_call_duration_seconds",
		Help:    "Latency of adapter invocations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	TrackingForwardsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_forwards_failed_total",
		Help: "Total number of best-effort tracking forwards that failed",
	})

	CartForwardsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_forwards_failed_total",
		Help: "Total number of best-effort cart-to-platform-order forwards that failed",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
