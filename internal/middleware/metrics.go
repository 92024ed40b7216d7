package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics. It also receives audit lifecycle
// events from the audit service.
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AuditsSubmitted    uint64
	AuditsDeduplicated uint64
	AuditsCompleted    uint64
	AuditsFailed       uint64
	DuplicateCallbacks uint64
	StartTime          time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

func (m *Metrics) AuditSubmitted()    { atomic.AddUint64(&m.AuditsSubmitted, 1) }
func (m *Metrics) AuditDeduplicated() { atomic.AddUint64(&m.AuditsDeduplicated, 1) }
func (m *Metrics) AuditCompleted()    { atomic.AddUint64(&m.AuditsCompleted, 1) }
func (m *Metrics) AuditFailed()       { atomic.AddUint64(&m.AuditsFailed, 1) }
func (m *Metrics) DuplicateCallback() { atomic.AddUint64(&m.DuplicateCallbacks, 1) }

// AuditsRunning is submitted minus terminal audits seen by this process.
// It can go negative across restarts, so it is clamped at zero.
func (m *Metrics) AuditsRunning() uint64 {
	submitted := atomic.LoadUint64(&m.AuditsSubmitted)
	done := atomic.LoadUint64(&m.AuditsCompleted) + atomic.LoadUint64(&m.AuditsFailed)
	if done > submitted {
		return 0
	}
	return submitted - done
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&m.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&m.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&m.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&m.RequestsFailed),
		"audits_submitted":     atomic.LoadUint64(&m.AuditsSubmitted),
		"audits_deduplicated":  atomic.LoadUint64(&m.AuditsDeduplicated),
		"audits_completed":     atomic.LoadUint64(&m.AuditsCompleted),
		"audits_failed":        atomic.LoadUint64(&m.AuditsFailed),
		"audits_running":       m.AuditsRunning(),
		"duplicate_callbacks":  atomic.LoadUint64(&m.DuplicateCallbacks),
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

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&m.RequestsTotal, 1)
		atomic.AddUint64(&m.RequestsInProgress, 1)
		defer atomic.AddUint64(&m.RequestsInProgress, ^uint64(0))

		// Wrap response writer to capture status
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			atomic.AddUint64(&m.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&m.RequestsFailed, 1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Snapshot())
}
