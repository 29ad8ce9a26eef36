// Package metrics wraps the Prometheus collectors exposed on /metrics.
// Every recording method is nil-safe so components can run without
// instrumentation in tests.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Allocation outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Metrics encapsulates the application's Prometheus instrumentation.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	allocations     *prometheus.CounterVec
	slotLockWait    prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	rateLimited     prometheus.Counter
}

// New registers the collectors on a private registry.
func New() *Metrics {
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

	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_allocations_total",
		Help: "Allocator decisions by operation and outcome",
	}, []string{"operation", "outcome"})

	slotLockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_slot_lock_wait_seconds",
		Help:    "Time spent waiting for the per-slot lock",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_cache_lookups_total",
		Help: "Response cache lookups by result",
	}, []string{"result"})

	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})

	registry.MustRegister(
		requestDuration, requestTotal, allocations, slotLockWait, cacheLookups, rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		allocations:     allocations,
		slotLockWait:    slotLockWait,
		cacheLookups:    cacheLookups,
		rateLimited:     rateLimited,
	}
}

// RegisterDB exports connection pool statistics for db.
func (m *Metrics) RegisterDB(db *sql.DB, name string) error {
	if m == nil || db == nil {
		return nil
	}
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	s := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, s).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, s).Inc()
}

func (m *Metrics) RecordAllocation(operation, outcome string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveSlotLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.slotLockWait.Observe(d.Seconds())
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
