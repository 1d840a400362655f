package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorelens/internal/config"
	"scorelens/internal/services"
	"scorelens/internal/shared/testutil"
)

func newHealthRouter(t *testing.T, tables *config.Tables, paths *config.Paths) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	h := NewHealthHandler(services.NewHealthService("1.2.3", "2026-01-01", tables, paths, logger), logger)

	r := chi.NewRouter()
	r.Get("/api/health", h.HealthCheck)
	r.Get("/api/health/ready", h.ReadinessCheck)
	r.Get("/api/health/live", h.LivenessCheck)
	r.Get("/api/version", h.Version)
	return r
}

func getJSON(t *testing.T, h http.Handler, target string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func TestHealthHandler_Endpoints(t *testing.T) {
	h := newHealthRouter(t, config.DefaultTables(), &config.Paths{OutputDir: t.TempDir()})

	tests := []struct {
		target     string
		wantStatus string
		wantKey    string
	}{
		{target: "/api/health", wantStatus: "ok", wantKey: "timestamp"},
		{target: "/api/health/ready", wantStatus: "ready", wantKey: "services"},
		{target: "/api/health/live", wantStatus: "alive", wantKey: "runtime"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			code, body := getJSON(t, h, tt.target)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "1.2.3", body["version"])
			assert.Contains(t, body, tt.wantKey)
		})
	}
}

func TestHealthHandler_NotReady(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	h := newHealthRouter(t, nil, &config.Paths{OutputDir: filepath.Join(blocker, "reports")})

	code, body := getJSON(t, h, "/api/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", body["status"])

	deps, ok := body["services"].(map[string]interface{})
	require.True(t, ok)
	tables, ok := deps["tables"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "not_ready", tables["status"])
}

func TestHealthHandler_Version(t *testing.T) {
	h := newHealthRouter(t, config.DefaultTables(), nil)

	code, body := getJSON(t, h, "/api/version")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "2026-01-01", body["build_time"])
	assert.Contains(t, body, "go_version")
}

func TestMetricsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMetricsHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	NewMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# HELP up\n"))
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}
