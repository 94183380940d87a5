// Package metrics provides Prometheus metrics for the console.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Operator API
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragconsole_http_requests_total",
			Help: "Total number of operator API requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragconsole_http_request_duration_seconds",
			Help:    "Operator API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Controller operations against the remote service
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragconsole_operations_total",
			Help: "Controller operations by name and outcome",
		},
		[]string{"operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragconsole_operation_duration_seconds",
			Help:    "Controller operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	gateRefusalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragconsole_gate_refusals_total",
			Help: "Mutating operations refused because another was in flight",
		},
		[]string{"operation"},
	)

	staleReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragconsole_stale_reads_discarded_total",
			Help: "Read results discarded because a newer read already completed",
		},
		[]string{"resource"},
	)

	noticesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragconsole_notices_posted_total",
			Help: "Notifications posted to the operator",
		},
	)

	exportBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragconsole_export_bytes_total",
			Help: "Archive bytes delivered by sink",
		},
		[]string{"sink"},
	)

	authenticated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragconsole_session_authenticated",
			Help: "1 while the session is authenticated",
		},
	)

	wsConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragconsole_ws_connections_active",
			Help: "Number of active websocket subscribers",
		},
	)
)

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOperation counts one finished controller operation. outcome is
// "success" or the error kind.
func RecordOperation(operation, outcome string, duration time.Duration) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordGateRefusal(operation string) {
	gateRefusalsTotal.WithLabelValues(operation).Inc()
}

func RecordStaleRead(resource string) {
	staleReadsTotal.WithLabelValues(resource).Inc()
}

func RecordNotice() {
	noticesTotal.Inc()
}

func RecordExport(sink string, bytes int) {
	exportBytesTotal.WithLabelValues(sink).Add(float64(bytes))
}

func SetAuthenticated(v bool) {
	if v {
		authenticated.Set(1)
		return
	}
	authenticated.Set(0)
}

func SetWSConnectionsActive(n int) {
	wsConnectionsActive.Set(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
