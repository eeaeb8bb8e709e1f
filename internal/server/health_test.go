package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, h http.Handler) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker()
	h.SetReady(false)
	code, body := probe(t, h.LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestHealthChecker_Readiness(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *HealthChecker)
		wantCode int
		wantKey  string
	}{
		{
			name:     "ready",
			setup:    func(h *HealthChecker) {},
			wantCode: http.StatusOK,
		},
		{
			name:     "not ready",
			setup:    func(h *HealthChecker) { h.SetReady(false) },
			wantCode: http.StatusServiceUnavailable,
			wantKey:  "ready",
		},
		{
			name:     "shutting down",
			setup:    func(h *HealthChecker) { h.SetShuttingDown() },
			wantCode: http.StatusServiceUnavailable,
			wantKey:  "shutdown",
		},
		{
			name: "database down",
			setup: func(h *HealthChecker) {
				h.AddCheck("database", func(context.Context) error { return errors.New("connection refused") })
			},
			wantCode: http.StatusServiceUnavailable,
			wantKey:  "database",
		},
		{
			name: "database up",
			setup: func(h *HealthChecker) {
				h.AddCheck("database", func(context.Context) error { return nil })
			},
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker()
			tt.setup(h)
			code, body := probe(t, h.ReadinessHandler())
			assert.Equal(t, tt.wantCode, code)
			if tt.wantKey != "" {
				checks := body["checks"].(map[string]any)
				assert.NotEqual(t, "ok", checks[tt.wantKey])
			}
		})
	}
}

func TestHealthChecker_Detailed(t *testing.T) {
	h := NewHealthChecker()
	code, body := probe(t, h.DetailedHealthHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["uptime"])

	h.SetShuttingDown()
	code, body = probe(t, h.DetailedHealthHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "shutting down", body["status"])
	assert.True(t, h.IsReady())
}
