package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request counter
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP request duration histogram
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// Active HTTP connections gauge
	HTTPActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	// Record store operations (fetch, create, update, remove)
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_store_operations_total",
			Help: "Total number of record store operations",
		},
		[]string{"operation", "result"}, // "success", "error"
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patient_store_operation_duration_seconds",
			Help:    "Duration of record store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Snapshot metrics
	SnapshotRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "patient_snapshot_records",
			Help: "Number of patient records in the current snapshot",
		},
	)

	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_snapshots_total",
			Help: "Total number of snapshots applied to the record store",
		},
		[]string{"source"}, // "fetch", "subscription"
	)

	// Document store operations against the remote collection
	DocumentOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_operations_total",
			Help: "Total number of remote document operations",
		},
		[]string{"operation", "result"}, // "success", "error", "miss"
	)

	DocumentOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "document_operation_duration_seconds",
			Help:    "Duration of remote document operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Toast notifications shown to users
	ToastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_toasts_total",
			Help: "Total number of toast notifications raised",
		},
		[]string{"kind", "action"},
	)

	// Live stream clients
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "patient_stream_clients",
			Help: "Number of connected live stream clients",
		},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)

	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// IncActiveConnections increments active connections
func IncActiveConnections() {
	HTTPActiveConnections.Inc()
}

// DecActiveConnections decrements active connections
func DecActiveConnections() {
	HTTPActiveConnections.Dec()
}

// RecordStoreOperation records the outcome and duration of a record store operation
func RecordStoreOperation(operation string, err error, duration time.Duration) {
	StoreOperationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSnapshot records an applied snapshot
func RecordSnapshot(source string, records int) {
	SnapshotsTotal.WithLabelValues(source).Inc()
	SnapshotRecords.Set(float64(records))
}

// RecordDocumentOperation records a remote document operation
func RecordDocumentOperation(operation, result string, duration time.Duration) {
	DocumentOperationsTotal.WithLabelValues(operation, result).Inc()
	DocumentOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordToast records a raised toast
func RecordToast(kind, action string) {
	ToastsTotal.WithLabelValues(kind, action).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
