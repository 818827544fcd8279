package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bakery-service/pkg/config"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthErrorsCounter   prometheus.Counter

	// Order commit metrics
	OrdersCommittedCounter prometheus.CounterVec
	OrderCommitDuration    prometheus.HistogramVec
	OversellRejections     prometheus.Counter
	IdempotentReplays      prometheus.Counter

	// Notification metrics
	NotificationFailures prometheus.Counter

	// Product metrics
	ProductOperationsCounter prometheus.CounterVec
	ProductInventoryGauge    prometheus.GaugeVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	// Use metric prefix from configuration
	prefix := config.Metrics.Prefix

	// HTTP request metrics
	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration
	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Authentication metrics
	AuthAttemptsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of staff authentication attempts",
		},
	)

	AuthErrorsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of staff authentication errors",
		},
	)

	// Order commit metrics
	OrdersCommittedCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_orders_committed_total",
			Help: "Total number of committed orders",
		},
		[]string{"payment_method"},
	)

	OrderCommitDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_order_commit_duration_seconds",
			Help:    "Duration of order commit transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"payment_method"},
	)

	OversellRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_oversell_rejections_total",
			Help: "Total number of commits rejected for insufficient stock",
		},
	)

	IdempotentReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_idempotent_replays_total",
			Help: "Total number of replayed payment confirmations",
		},
	)

	// Notification metrics
	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_notification_failures_total",
			Help: "Total number of failed order confirmation emails",
		},
	)

	// Product metrics
	ProductOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_product_operations_total",
			Help: "Total number of product operations",
		},
		[]string{"operation"},
	)

	ProductInventoryGauge = *promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_product_inventory",
			Help: "Current inventory level for products",
		},
		[]string{"product_id", "product_name"},
	)
}

// TrackCommit returns a function that records the duration of an order commit
func TrackCommit(paymentMethod string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		OrderCommitDuration.WithLabelValues(paymentMethod).Observe(duration)
	}
}

// RecordProductOperation increments the counter for product operations
func RecordProductOperation(operation string) {
	ProductOperationsCounter.WithLabelValues(operation).Inc()
}

// UpdateProductInventory updates the gauge for product inventory
func UpdateProductInventory(productID string, productName string, count float64) {
	ProductInventoryGauge.WithLabelValues(productID, productName).Set(count)
}
