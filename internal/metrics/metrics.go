// Package metrics records Prometheus metrics for batch extraction and the
// HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// filesProcessed counts processed files by result status
	filesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arpe_files_processed_total",
			Help: "Total number of processed Touchstone files",
		},
		[]string{"status"},
	)

	// fileDuration tracks per-file pipeline duration in seconds
	fileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arpe_file_duration_seconds",
			Help:    "Per-file extraction duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// batchesProcessed counts finished batches
	batchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arpe_batches_processed_total",
			Help: "Total number of processed batches",
		},
		[]string{"outcome"},
	)

	batchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arpe_batch_files",
			Help:    "Number of files per batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	filesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arpe_files_in_flight",
			Help: "Number of files currently being processed",
		},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arpe_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arpe_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// FileStarted marks a file as in flight
func FileStarted() {
	filesInFlight.Inc()
}

// RecordFile records a finished file
func RecordFile(status string, duration time.Duration) {
	filesInFlight.Dec()
	filesProcessed.WithLabelValues(status).Inc()
	fileDuration.Observe(duration.Seconds())
}

// RecordBatch records a finished batch; outcome is "completed" or "cancelled"
func RecordBatch(outcome string, files int) {
	batchesProcessed.WithLabelValues(outcome).Inc()
	batchSize.Observe(float64(files))
}

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
