package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and admissions activity.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	applicationsSubmitted prometheus.Counter
	submissionsRejected   *prometheus.CounterVec
	documentsUploaded     *prometheus.CounterVec
	uploadsRejected       *prometheus.CounterVec
	uploadBytes           prometheus.Histogram
	documentsDeleted      prometheus.Counter
	statusChanges         *prometheus.CounterVec
	catalogFallbacks      prometheus.Counter
	fileRemovalFailures   prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	applicationsSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admissions_applications_submitted_total",
		Help: "Applications accepted by the submit endpoint",
	})

	submissionsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admissions_submissions_rejected_total",
		Help: "Submissions refused before persistence",
	}, []string{"reason"})

	documentsUploaded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admissions_documents_uploaded_total",
		Help: "Supporting documents stored",
	}, []string{"document_type"})

	uploadsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admissions_uploads_rejected_total",
		Help: "Uploads refused by validation",
	}, []string{"reason"})

	uploadBytes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "admissions_upload_size_bytes",
		Help:    "Size of stored supporting documents",
		Buckets: prometheus.ExponentialBuckets(64*1024, 2, 8),
	})

	documentsDeleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admissions_documents_deleted_total",
		Help: "Supporting documents removed by applicants",
	})

	statusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admissions_status_changes_total",
		Help: "Review status transitions",
	}, []string{"status"})

	catalogFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admissions_document_type_fallback_total",
		Help: "Times the built-in document type list was served",
	})

	fileRemovalFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admissions_file_removal_failures_total",
		Help: "Stored files left behind after their document was deleted",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		applicationsSubmitted, submissionsRejected, documentsUploaded, uploadsRejected, uploadBytes,
		documentsDeleted, statusChanges, catalogFallbacks, fileRemovalFailures, goroutines,
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:              registry,
		handler:               handler,
		requestDuration:       requestDuration,
		requestTotal:          requestTotal,
		cacheLatency:          cacheLatency,
		cacheWrite:            cacheWrite,
		cacheHitRatio:         cacheHitRatio,
		cacheHits:             cacheHits,
		cacheMisses:           cacheMisses,
		applicationsSubmitted: applicationsSubmitted,
		submissionsRejected:   submissionsRejected,
		documentsUploaded:     documentsUploaded,
		uploadsRejected:       uploadsRejected,
		uploadBytes:           uploadBytes,
		documentsDeleted:      documentsDeleted,
		statusChanges:         statusChanges,
		catalogFallbacks:      catalogFallbacks,
		fileRemovalFailures:   fileRemovalFailures,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordApplicationSubmitted counts a persisted application.
func (m *MetricsService) RecordApplicationSubmitted() {
	if m == nil {
		return
	}
	m.applicationsSubmitted.Inc()
}

// RecordSubmissionRejected counts a refused submission.
func (m *MetricsService) RecordSubmissionRejected(reason string) {
	if m == nil {
		return
	}
	m.submissionsRejected.WithLabelValues(reason).Inc()
}

// RecordDocumentUploaded counts a stored document and its size.
func (m *MetricsService) RecordDocumentUploaded(documentType string, size int64) {
	if m == nil {
		return
	}
	m.documentsUploaded.WithLabelValues(documentType).Inc()
	m.uploadBytes.Observe(float64(size))
}

// RecordUploadRejected counts an upload refused by validation.
func (m *MetricsService) RecordUploadRejected(reason string) {
	if m == nil {
		return
	}
	m.uploadsRejected.WithLabelValues(reason).Inc()
}

// RecordDocumentDeleted counts a removed document.
func (m *MetricsService) RecordDocumentDeleted() {
	if m == nil {
		return
	}
	m.documentsDeleted.Inc()
}

// RecordStatusChange counts a review transition into status.
func (m *MetricsService) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// RecordCatalogFallback counts a response served from the built-in document type list.
func (m *MetricsService) RecordCatalogFallback() {
	if m == nil {
		return
	}
	m.catalogFallbacks.Inc()
}

// RecordFileRemovalFailure counts a stored file that could not be deleted.
func (m *MetricsService) RecordFileRemovalFailure() {
	if m == nil {
		return
	}
	m.fileRemovalFailures.Inc()
}
