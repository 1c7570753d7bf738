package flagrelay

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle,
// the cache policy decisions and the transport session churn. It is safe
// for concurrent use; a nil collector records nothing.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheSkips      *prometheus.CounterVec
	staleEvictions  *prometheus.CounterVec
	cacheSize       *prometheus.GaugeVec
	sessionRebuilds prometheus.Counter

	deduplicationHits *prometheus.CounterVec
	streamReconnects  prometheus.Counter

	errorsTotal *prometheus.CounterVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "flagrelay_requests_total",
				Help: "Total number of flag API requests completed",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flagrelay_request_duration_seconds",
				Help:    "Duration of flag API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flagrelay_requests_in_flight",
				Help: "Number of flag API requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "flagrelay_cache_hits_total",
				Help: "Total number of fresh cache entries found",
			},
			[]string{"method", "endpoint"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "flagrelay_cache_misses_total",
				Help: "Total number of cache lookups finding no fresh entry",
			},
			[]string{"method", "endpoint"},
		),
		cacheSkips: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "flagrelay_cache_network_skips_total",
				Help: "Total number of requests served from cache without network contact",
			},
			[]string{"method", "endpoint"},
		),
		staleEvictions: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "flagrelay_cache_stale_evictions_total",
				Help: "Total number of stale entries evicted before a forced reload",
			},
			[]string{"method", "endpoint"},
		),
		cacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flagrelay_cache_size",
				Help: "Current number of entries in the response cache",
			},
			[]string{"name"},
		),
		sessionRebuilds: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "flagrelay_session_rebuilds_total",
				Help: "Total number of transport sessions constructed after a config change",
			},
		),
		deduplicationHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "flagrelay_deduplication_hits_total",
				Help: "Total number of requests coalesced onto an in-flight exchange",
			},
			[]string{"method", "endpoint"},
		),
		streamReconnects: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "flagrelay_stream_reconnects_total",
				Help: "Total number of streaming channel reconnect attempts",
			},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "flagrelay_errors_total",
				Help: "Total number of errors delivered to callers",
			},
			[]string{"type", "method", "endpoint"},
		),
		registry: registry,
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordCacheHit increments the fresh-entry counter.
func (mc *MetricsCollector) RecordCacheHit(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.cacheHits.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheMiss increments the no-fresh-entry counter.
func (mc *MetricsCollector) RecordCacheMiss(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.cacheMisses.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheSkip increments the served-without-network counter.
func (mc *MetricsCollector) RecordCacheSkip(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.cacheSkips.WithLabelValues(method, endpoint).Inc()
}

// RecordStaleEviction increments the forced-reload eviction counter.
func (mc *MetricsCollector) RecordStaleEviction(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.staleEvictions.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheSize sets the cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(name string, size int) {
	if mc == nil {
		return
	}

	mc.cacheSize.WithLabelValues(name).Set(float64(size))
}

// RecordSessionRebuild increments the session construction counter.
func (mc *MetricsCollector) RecordSessionRebuild() {
	if mc == nil {
		return
	}

	mc.sessionRebuilds.Inc()
}

// RecordDeduplicationHit increments the coalesced-request counter.
func (mc *MetricsCollector) RecordDeduplicationHit(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.deduplicationHits.WithLabelValues(method, endpoint).Inc()
}

// RecordStreamReconnect increments the stream reconnect counter.
func (mc *MetricsCollector) RecordStreamReconnect() {
	if mc == nil {
		return
	}

	mc.streamReconnects.Inc()
}

// RecordError increments the error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}
