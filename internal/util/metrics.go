package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_created_total",
		Help: "Total number of carts created",
	})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations by kind",
	}, []string{"kind"})

	CartMutationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_rejected_total",
		Help: "Total number of cart mutations rejected",
	}, []string{"reason"})

	CartLockTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_lock_transitions_total",
		Help: "Total number of cart lock and unlock transitions",
	}, []string{"state"})

	OrdersFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_finalized_total",
		Help: "Total number of carts finalized into orders",
	})

	OrderTotalsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_totals_latency_seconds",
		Help:    "Latency of order totals computation",
		Buckets: prometheus.DefBuckets,
	})

	GuestViewsDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guest_views_denied_total",
		Help: "Total number of denied order view attempts",
	}, []string{"reason"})

	ProductCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_cache_hits_total",
		Help: "Product snapshot cache lookups by outcome",
	}, []string{"outcome"})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts",
	})

	PaymentSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_success_total",
		Help: "Total number of successful payments",
	})

	PaymentFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of failed payments",
	})

	PaymentProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_processing_latency_seconds",
		Help:    "Latency of payment processing",
		Buckets: prometheus.DefBuckets,
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
