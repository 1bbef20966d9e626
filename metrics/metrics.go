package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Booking engine metrics
	bookingOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Booking engine operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	bookingRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_retries_total",
			Help: "Transactions retried after a version conflict",
		},
		[]string{"operation"},
	)

	// Cache layer metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Read-through lookups by result (hit, miss, error)",
		},
		[]string{"class", "result"},
	)

	// Invalidation metrics
	cachePurgesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_purges_total",
			Help: "Purge attempts by result (ok, partial, failed)",
		},
		[]string{"result"},
	)

	cacheKeysPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_keys_purged_total",
			Help: "Cache keys deleted by invalidation",
		},
	)

	cachePurgeDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_purge_dropped_total",
			Help: "Purges abandoned and left to TTL expiry",
		},
		[]string{"reason"},
	)

	cachePurgeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cache_purge_duration_seconds",
			Help:    "Duration of a single purge attempt",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
	)

	// Worker metrics
	purgeWorkerMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purge_worker_messages_total",
			Help: "Purge retry messages consumed by result",
		},
		[]string{"result"},
	)
)

func RecordBookingOperation(operation, outcome string) {
	bookingOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordBookingRetry(operation string) {
	bookingRetriesTotal.WithLabelValues(operation).Inc()
}

func RecordCacheLookup(class, result string) {
	cacheLookupsTotal.WithLabelValues(class, result).Inc()
}

// RecordPurge records one purge attempt and the number of keys it removed
func RecordPurge(result string, deleted int64, duration time.Duration) {
	cachePurgesTotal.WithLabelValues(result).Inc()
	cacheKeysPurgedTotal.Add(float64(deleted))
	cachePurgeDuration.Observe(duration.Seconds())
}

func RecordPurgeDropped(reason string) {
	cachePurgeDroppedTotal.WithLabelValues(reason).Inc()
}

func RecordWorkerMessage(result string) {
	purgeWorkerMessagesTotal.WithLabelValues(result).Inc()
}

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
