package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("nope"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/audit/status/x", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/audit/status/x", fields["path"])
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
	assert.EqualValues(t, 4, fields["bytes"])
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	m.AuditSubmitted()
	m.AuditSubmitted()
	m.AuditCompleted()
	m.AuditDeduplicated()
	m.DuplicateCallback()

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap["requests_total"])
	assert.EqualValues(t, 1, snap["requests_success"])
	assert.EqualValues(t, 1, snap["requests_failed"])
	assert.EqualValues(t, 0, snap["requests_in_progress"])
	assert.EqualValues(t, 2, snap["audits_submitted"])
	assert.EqualValues(t, 1, snap["audits_running"])
	assert.EqualValues(t, 1, snap["duplicate_callbacks"])

	rec := httptest.NewRecorder()
	m.Handler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["audits_deduplicated"])
}

func TestMetrics_RunningNeverNegative(t *testing.T) {
	m := NewMetrics()
	m.AuditFailed()
	assert.Zero(t, m.AuditsRunning())
}

func TestHealthHandler(t *testing.T) {
	ok := CheckFunc(func(context.Context) error { return nil })
	down := CheckFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"database": ok})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"database": ok, "redis": down})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["database"].Status)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, 0)
	defer rl.Close()
	h := rl.Limit(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/audit/submit", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// a different client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/audit/submit", nil)
	req.RemoteAddr = "198.51.100.1:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Jane\tDoe", SanitizeString("  Ja\x00ne\tDoe\x07 "))
}

func TestValidateTrackingID(t *testing.T) {
	assert.NoError(t, ValidateTrackingID("audit_0b9d6c2e-4f7a-4d55-9a0e-2f1c3b4a5d6e"))
	for _, id := range []string{"", "audit_", "0b9d6c2e-4f7a-4d55-9a0e-2f1c3b4a5d6e", "audit_../../etc"} {
		assert.Error(t, ValidateTrackingID(id), id)
	}
}
