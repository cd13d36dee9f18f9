package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/classroom-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheHitRatio      prometheus.Gauge
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheInvalidations prometheus.Counter
	signUps            *prometheus.CounterVec
	inviteEmails       *prometheus.CounterVec

	clientCount func() int

	cacheHitCount        uint64
	cacheMissCount       uint64
	invalidationCount    uint64
	requestCount         uint64
	requestDurationTotal uint64
	signUpCount          uint64
	inviteConsumedCount  uint64
	inviteSentCount      uint64
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

	cacheInvalidations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_invalidated_keys_total",
		Help: "Cache keys invalidated by writes",
	})

	signUps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signups_total",
		Help: "Completed sign-ups by path",
	}, []string{"path"})

	inviteEmails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invite_emails_total",
		Help: "Invitation e-mail delivery attempts by outcome",
	}, []string{"outcome"})

	m := &MetricsService{
		registry:           registry,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		cacheInvalidations: cacheInvalidations,
		signUps:            signUps,
		inviteEmails:       inviteEmails,
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	realtimeClients := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "realtime_clients",
		Help: "Connected websocket clients",
	}, func() float64 {
		return float64(m.realtimeClients())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, cacheInvalidations, signUps, inviteEmails, goroutines, realtimeClients)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// TrackRealtimeClients installs the source of the connected clients gauge.
func (m *MetricsService) TrackRealtimeClients(count func() int) {
	if m == nil {
		return
	}
	m.clientCount = count
}

func (m *MetricsService) realtimeClients() int {
	if m == nil || m.clientCount == nil {
		return 0
	}
	return m.clientCount()
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordInvalidation counts invalidated keys.
func (m *MetricsService) RecordInvalidation(keys int) {
	if m == nil || keys <= 0 {
		return
	}
	m.cacheInvalidations.Add(float64(keys))
	atomic.AddUint64(&m.invalidationCount, uint64(keys))
}

// RecordSignUp counts a completed sign-up.
func (m *MetricsService) RecordSignUp(viaInvite bool) {
	if m == nil {
		return
	}
	path := "new_school"
	if viaInvite {
		path = "invite"
		atomic.AddUint64(&m.inviteConsumedCount, 1)
	}
	m.signUps.WithLabelValues(path).Inc()
	atomic.AddUint64(&m.signUpCount, 1)
}

// RecordInviteEmail counts an invitation delivery attempt.
func (m *MetricsService) RecordInviteEmail(err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	} else {
		atomic.AddUint64(&m.inviteSentCount, 1)
	}
	m.inviteEmails.WithLabelValues(outcome).Inc()
}

// Snapshot returns aggregated metrics for the metrics summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheInvalidations:       atomic.LoadUint64(&m.invalidationCount),
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SignUps:                  atomic.LoadUint64(&m.signUpCount),
		InvitesConsumed:          atomic.LoadUint64(&m.inviteConsumedCount),
		InviteEmailsSent:         atomic.LoadUint64(&m.inviteSentCount),
		RealtimeClients:          m.realtimeClients(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
