package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application counters.
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64
	RateLimited        atomic.Uint64
	ReadingsTotal      atomic.Uint64
	CacheHits          atomic.Uint64
	ReadingsRejected   atomic.Uint64
	UpstreamFailures   atomic.Uint64
	StartTime          time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

func (m *Metrics) IncrementRateLimited() { m.RateLimited.Add(1) }

// CacheHit counts a reading served from the cache.
func (m *Metrics) CacheHit() {
	m.ReadingsTotal.Add(1)
	m.CacheHits.Add(1)
}

// ReadingAccepted counts a fresh reading that passed the quality filter.
func (m *Metrics) ReadingAccepted() { m.ReadingsTotal.Add(1) }

// ReadingRejected counts a reading replaced by a fallback message.
func (m *Metrics) ReadingRejected() {
	m.ReadingsTotal.Add(1)
	m.ReadingsRejected.Add(1)
}

// UpstreamFailed counts a provider call that errored.
func (m *Metrics) UpstreamFailed() {
	m.ReadingsTotal.Add(1)
	m.UpstreamFailures.Add(1)
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"requests_total":       m.RequestsTotal.Load(),
		"requests_in_progress": m.RequestsInProgress.Load(),
		"requests_success":     m.RequestsSuccess.Load(),
		"requests_failed":      m.RequestsFailed.Load(),
		"rate_limited":         m.RateLimited.Load(),
		"readings_total":       m.ReadingsTotal.Load(),
		"cache_hits":           m.CacheHits.Load(),
		"readings_rejected":    m.ReadingsRejected.Load(),
		"upstream_failures":    m.UpstreamFailures.Load(),
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request counters
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsTotal.Add(1)
		m.RequestsInProgress.Add(1)
		defer m.RequestsInProgress.Add(-1)

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.RequestsSuccess.Add(1)
		} else {
			m.RequestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Snapshot())
}
