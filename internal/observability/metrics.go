// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scan metrics
	ScanCyclesTotal     *prometheus.CounterVec
	ScanDuration        prometheus.Histogram
	TokensFetched       prometheus.Counter
	TokensRejected      *prometheus.CounterVec
	StreamEventsMerged  prometheus.Counter
	StreamEventsDropped prometheus.Counter

	// Decision metrics
	IndicatorsFired  *prometheus.CounterVec
	AlertsEmitted    *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec

	// Delivery metrics
	DeliveriesTotal *prometheus.CounterVec
	DeliveryLatency prometheus.Histogram

	// History metrics
	HistorySize   prometheus.Gauge
	RecordsPruned prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
	UptimeSeconds      prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pump_me_fun"
	}

	return &Metrics{
		// Scan metrics
		ScanCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "cycles_total",
			Help:      "Total number of scan cycles by status",
		}, []string{"status"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Scan cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		TokensFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "tokens_fetched_total",
			Help:      "Total number of tokens returned by the feed",
		}),
		TokensRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "tokens_rejected_total",
			Help:      "Total number of feed entries rejected during normalization",
		}, []string{"reason"}),
		StreamEventsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "stream_events_merged_total",
			Help:      "Total number of creation-stream events merged into cycles",
		}),
		StreamEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "stream_events_dropped_total",
			Help:      "Total number of creation-stream events evicted from a full buffer",
		}),

		// Decision metrics
		IndicatorsFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "indicators_fired_total",
			Help:      "Total number of indicator firings by kind",
		}, []string{"kind"}),
		AlertsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "alerts_emitted_total",
			Help:      "Total number of alerts emitted by kind",
		}, []string{"kind"}),
		AlertsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "alerts_suppressed_total",
			Help:      "Total number of suppressed decisions by reason",
		}, []string{"reason"}),

		// Delivery metrics
		DeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Total number of notification deliveries by status",
		}, []string{"status"}),
		DeliveryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "delivery_latency_seconds",
			Help:      "Notification delivery latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// History metrics
		HistorySize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "size",
			Help:      "Current number of tracked tokens",
		}),
		RecordsPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "records_pruned_total",
			Help:      "Total number of history records pruned",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of last successful scan cycle",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle records one scan cycle with its duration.
func RecordCycle(status string, durationSeconds float64) {
	DefaultMetrics.ScanCyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.ScanDuration.Observe(durationSeconds)
}

// RecordTokensFetched adds to the fetched-token counter.
func RecordTokensFetched(n int) {
	DefaultMetrics.TokensFetched.Add(float64(n))
}

// RecordTokenRejected records one rejected feed entry.
func RecordTokenRejected(reason string) {
	DefaultMetrics.TokensRejected.WithLabelValues(reason).Inc()
}

// RecordStreamMerged adds to the merged creation-event counter.
func RecordStreamMerged(n int) {
	DefaultMetrics.StreamEventsMerged.Add(float64(n))
}

// RecordStreamDropped adds to the dropped creation-event counter.
func RecordStreamDropped(n int) {
	DefaultMetrics.StreamEventsDropped.Add(float64(n))
}

// RecordIndicatorFired records one indicator firing.
func RecordIndicatorFired(kind string) {
	DefaultMetrics.IndicatorsFired.WithLabelValues(kind).Inc()
}

// RecordAlertEmitted records one emitted alert.
func RecordAlertEmitted(kind string) {
	DefaultMetrics.AlertsEmitted.WithLabelValues(kind).Inc()
}

// RecordAlertSuppressed records one suppressed decision.
func RecordAlertSuppressed(reason string) {
	DefaultMetrics.AlertsSuppressed.WithLabelValues(reason).Inc()
}

// RecordDelivery records one notification delivery outcome.
func RecordDelivery(status string, seconds float64) {
	DefaultMetrics.DeliveriesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.DeliveryLatency.Observe(seconds)
}

// UpdateHistorySize updates the tracked-token gauge.
func UpdateHistorySize(n int) {
	DefaultMetrics.HistorySize.Set(float64(n))
}

// RecordPruned adds to the pruned-record counter.
func RecordPruned(n int) {
	DefaultMetrics.RecordsPruned.Add(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// MarkScanSuccess stamps the last successful scan gauge.
func MarkScanSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulScan.Set(float64(unixSeconds))
}
