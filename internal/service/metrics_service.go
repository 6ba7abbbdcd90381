package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/edupacket-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	purged          *prometheus.CounterVec
	blobFailures    *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	lastSweep       prometheus.Gauge
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

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_transitions_total",
		Help: "Lifecycle transitions applied, by kind and transition",
	}, []string{"kind", "transition"})

	purged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_purged_total",
		Help: "Records permanently removed by the retention sweep",
	}, []string{"collection"})

	blobFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blob_delete_failures_total",
		Help: "Blob deletions that failed and were skipped",
	}, []string{"source"})

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blob_uploads_total",
		Help: "Blob uploads by outcome",
	}, []string{"outcome"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_cache_lookups_total",
		Help: "Listing cache lookups by result",
	}, []string{"result"})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "purge_sweep_duration_seconds",
		Help:    "Duration of retention sweeps",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	lastSweep := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "purge_last_sweep_timestamp_seconds",
		Help: "Unix time the last retention sweep finished",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitions, purged, blobFailures, uploads, cacheLookups, sweepDuration, lastSweep, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitions:     transitions,
		purged:          purged,
		blobFailures:    blobFailures,
		uploads:         uploads,
		cacheLookups:    cacheLookups,
		sweepDuration:   sweepDuration,
		lastSweep:       lastSweep,
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

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordTransition counts a soft delete, restore or hard delete.
func (m *MetricsService) RecordTransition(kind models.DocumentKind, transition string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(kind), transition).Inc()
}

// RecordPurge counts one record removed by the sweep.
func (m *MetricsService) RecordPurge(collection string) {
	if m == nil {
		return
	}
	m.purged.WithLabelValues(collection).Inc()
}

// RecordBlobFailure counts a failed best-effort blob deletion.
func (m *MetricsService) RecordBlobFailure(source string) {
	if m == nil {
		return
	}
	m.blobFailures.WithLabelValues(source).Inc()
}

// RecordUpload counts an upload attempt by outcome.
func (m *MetricsService) RecordUpload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts a listing cache lookup as hit, miss or error.
func (m *MetricsService) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveSweep records sweep timing.
func (m *MetricsService) ObserveSweep(report *models.PurgeReport) {
	if m == nil || report == nil || report.Skipped {
		return
	}
	m.sweepDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	m.lastSweep.Set(float64(report.FinishedAt.Unix()))
}
