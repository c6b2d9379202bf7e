package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sun_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// StoreQueryLatency records store latency by backend, operation and table.
	StoreQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sun_store_query_latency_seconds",
		Help:    "Store query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "operation", "table"})

	// DonationTransitions counts lifecycle transitions by target status.
	DonationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sun_donation_transitions_total",
		Help: "Total donation lifecycle transitions by resulting status",
	}, []string{"status"})

	// PointsAwarded counts points granted by reason.
	PointsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sun_points_awarded_total",
		Help: "Total points awarded by reason",
	}, []string{"reason"})

	// CertificatesAwarded counts milestone certificates by name.
	CertificatesAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sun_certificates_awarded_total",
		Help: "Total certificates awarded by name",
	}, []string{"certificate"})

	// SummarySyncFailures counts best-effort summary writes that failed.
	SummarySyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sun_summary_sync_failures_total",
		Help: "Total failed best-effort donation summary updates",
	})

	// FeedConnections is the gauge of open websocket feed connections.
	FeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sun_feed_connections",
		Help: "Number of open donation feed websocket connections",
	})

	// FeedMessagesDropped counts feed messages dropped per reason (full, closed).
	FeedMessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sun_feed_messages_dropped_total",
		Help: "Total donation feed messages dropped due to websocket backpressure",
	}, []string{"reason"})
)

// StoreMetrics records query latency for one storage backend.
type StoreMetrics struct {
	backend string
}

// NewStoreMetrics returns a StoreMetrics for the named backend.
func NewStoreMetrics(backend string) *StoreMetrics {
	return &StoreMetrics{backend: backend}
}

// ObserveQuery records the latency of a store query.
func (m *StoreMetrics) ObserveQuery(operation, table string, start time.Time) {
	StoreQueryLatency.WithLabelValues(m.backend, operation, table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *StoreMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
