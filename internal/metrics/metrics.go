// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GRPCServerHandlingSeconds is a histogram for gRPC server request latencies
	GRPCServerHandlingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grpc_server_handling_seconds",
			Help:    "Histogram of response latency (seconds) of gRPC that had been application-level handled by the server.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "code"},
	)

	// SessionRunSeconds is a histogram for engine run latency
	SessionRunSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_run_seconds",
			Help:    "Histogram of session run latency (seconds) excluding gRPC overhead.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// SessionRunErrors counts failed runs by error kind
	SessionRunErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_run_errors_total",
			Help: "Number of failed session runs by error kind.",
		},
		[]string{"kind"},
	)

	// SessionFeedSize tracks the number of entries per feed
	SessionFeedSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_feed_size",
			Help:    "Histogram of feed entry counts for run requests.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		},
	)

	// CacheRequests counts result cache lookups
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_cache_requests_total",
			Help: "Result cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	// SessionReloads counts model reload attempts
	SessionReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_reloads_total",
			Help: "Model reload attempts by result (ok, error).",
		},
		[]string{"result"},
	)

	// HealthStatus is a gauge indicating the health status of the service
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "health_status",
			Help: "Health status of the service (1 = healthy, 0 = unhealthy).",
		},
	)
)

// RecordGRPCLatency records the latency of a gRPC method call
func RecordGRPCLatency(method, code string, seconds float64) {
	GRPCServerHandlingSeconds.WithLabelValues(method, code).Observe(seconds)
}

// RecordRun records the latency of a session run and its feed size
func RecordRun(seconds float64, feedSize int) {
	SessionRunSeconds.Observe(seconds)
	SessionFeedSize.Observe(float64(feedSize))
}

// RecordRunError counts a failed run
func RecordRunError(kind string) {
	SessionRunErrors.WithLabelValues(kind).Inc()
}

// RecordCache counts a cache lookup
func RecordCache(result string) {
	CacheRequests.WithLabelValues(result).Inc()
}

// RecordReload counts a model reload attempt
func RecordReload(ok bool) {
	if ok {
		SessionReloads.WithLabelValues("ok").Inc()
		return
	}
	SessionReloads.WithLabelValues("error").Inc()
}

// SetHealthy sets the health status to healthy
func SetHealthy() {
	HealthStatus.Set(1)
}

// SetUnhealthy sets the health status to unhealthy
func SetUnhealthy() {
	HealthStatus.Set(0)
}
