package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	gradingTotal          *prometheus.CounterVec
	uploadRequestsTotal   *prometheus.CounterVec
	uploadRejectedTotal   *prometheus.CounterVec
	uploadLatencySeconds  prometheus.Histogram
	cacheOutcomesTotal    *prometheus.CounterVec
	messagesPublishedConn prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lms_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradingTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_grading_total",
			Help: "Total number of grading operations by outcome.",
		}, []string{"outcome"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_upload_requests_total",
			Help: "Total number of accepted file uploads by detected type.",
		}, []string{"type"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_upload_rejected_total",
			Help: "Total number of rejected file uploads by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lms_upload_latency_seconds",
			Help:    "Latency distribution for file upload handling.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		cacheOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_cache_outcomes_total",
			Help: "Cache hit/miss/error outcomes for cached listings.",
		}, []string{"cache", "outcome"})

		messagesPublishedConn = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lms_message_stream_connections",
			Help: "Number of active websocket message stream connections.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			gradingTotal,
			uploadRequestsTotal,
			uploadRejectedTotal,
			uploadLatencySeconds,
			cacheOutcomesTotal,
			messagesPublishedConn,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// Grading exposes the counter for grading outcomes.
func Grading() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingTotal
}

// UploadRequests exposes the counter for accepted uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected exposes the counter for rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// CacheOutcomes exposes the counter for cache hit/miss outcomes.
func CacheOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheOutcomesTotal
}

// MessageStreamConnections exposes the gauge of open stream connections.
func MessageStreamConnections() prometheus.Gauge {
	RegisterMetrics()
	return messagesPublishedConn
}
