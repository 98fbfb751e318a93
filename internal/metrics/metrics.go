package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "backoffice"

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Bulk price update rows by outcome (updated, skipped, failed)
	BulkPriceRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_bulk_price_rows_total",
			Help: "Rows processed by bulk price updates",
		},
		[]string{"operation", "outcome"},
	)

	// Prices pushed to marketplaces by outcome (success, error)
	PricePushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_price_pushes_total",
			Help: "Listing prices pushed to marketplace gateways",
		},
		[]string{"platform", "outcome"},
	)

	PricePushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_price_push_duration_seconds",
			Help:    "Duration of a single marketplace price push",
			Buckets: prometheus.DefBuckets,
		},
	)

	EntitlementDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_entitlement_denials_total",
			Help: "Requests rejected because the tenant lacks a module",
		},
		[]string{"module"},
	)

	LapsedSubscriptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_lapsed_subscriptions_total",
			Help: "Subscriptions moved to past_due by the expiry worker",
		},
	)

	EventDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_event_drops_total",
			Help: "Admin stream events discarded because a client buffer was full",
		},
		[]string{"policy"},
	)
)

// RecordBulkPriceRow increments the bulk row counter.
func RecordBulkPriceRow(operation, outcome string) {
	BulkPriceRows.WithLabelValues(operation, outcome).Inc()
}

// RecordPricePush records one gateway push and its duration.
func RecordPricePush(platform, outcome string, start time.Time) {
	PricePushes.WithLabelValues(platform, outcome).Inc()
	PricePushDuration.Observe(time.Since(start).Seconds())
}

// RecordEventDrop counts one event discarded under policy.
func RecordEventDrop(policy string) {
	EventDrops.WithLabelValues(policy).Inc()
}

// RecordEntitlementDenial increments the denial counter for module.
func RecordEntitlementDenial(module string) {
	EntitlementDenials.WithLabelValues(module).Inc()
}
