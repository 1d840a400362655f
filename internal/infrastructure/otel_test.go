package infrastructure

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"scorelens/internal/config"
)

func TestInitializeOTel_MetricsOnly(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), slog.Default())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	assert.Nil(t, providers.TracerProvider, "tracing is off by default")
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	require.NotNil(t, providers.PrometheusHTTP)

	metrics, err := NewPipelineMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RecordRun(context.Background(), "test", 20*time.Millisecond, nil)
	metrics.RecordRows(context.Background(), 3, map[string]int{"RangeViolation": 1})

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pipeline_runs_total")
}

func TestInitializeOTel_Tracing(t *testing.T) {
	cfg := OTelConfigFrom(config.TelemetryConfig{
		ServiceName:    "scorelens-test",
		Environment:    "test",
		TracingEnabled: true,
	})
	cfg.TraceExporter = "none"

	providers, err := InitializeOTel(cfg, nil)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())
	assert.Nil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
}

func TestInitializeOTel_UnsupportedExporter(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.EnableTracing = true
	cfg.TraceExporter = "jaeger"

	_, err := InitializeOTel(cfg, nil)
	assert.Error(t, err)
}

func TestPipelineMetrics_NilSafe(t *testing.T) {
	var m *PipelineMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordRun(ctx, "x", time.Second, errors.New("boom"))
		m.RecordStage(ctx, "clean", time.Second)
		m.RecordRows(ctx, 1, nil)
		m.RecordTraits(ctx, []string{"diligent"})
	})
}

func TestNewMetrics_NoopMeter(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	pm, err := NewPipelineMetrics(meter)
	require.NoError(t, err)
	pm.RecordTraits(context.Background(), []string{"punctual"})

	hm, err := NewHTTPMetrics(meter)
	require.NoError(t, err)
	assert.NotNil(t, hm.RequestsTotal)
}

func TestSpanHelpers_NoActiveSpan(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, TraceIDFromContext(ctx))
	assert.NotPanics(t, func() {
		RecordError(ctx, errors.New("x"))
		SetSpanAttributes(ctx, map[string]interface{}{"rows": 3})
	})
}
