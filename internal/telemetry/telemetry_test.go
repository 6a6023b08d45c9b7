package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr string
		verify  func(t *testing.T, tel *Telemetry)
	}{
		{
			name:   "nil config uses no-op providers",
			config: nil,
			verify: func(t *testing.T, tel *Telemetry) {
				t.Helper()
				assert.IsType(t, tracenoop.TracerProvider{}, tel.TracerProvider())
				assert.IsType(t, metricnoop.MeterProvider{}, tel.MeterProvider())
				assert.Nil(t, tel.MetricsHandler())
			},
		},
		{
			name:   "disabled config uses no-op providers",
			config: &Config{Tracing: &TracingConfig{Enabled: true}},
			verify: func(t *testing.T, tel *Telemetry) {
				t.Helper()
				assert.IsType(t, tracenoop.TracerProvider{}, tel.TracerProvider())
			},
		},
		{
			name: "invalid config",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(1.5)},
			},
			wantErr: "invalid telemetry configuration",
		},
		{
			name: "tracing only",
			config: &Config{
				Enabled:  true,
				Endpoint: "127.0.0.1:4318",
				Insecure: true,
				Tracing:  &TracingConfig{Enabled: true, Sampling: floatPtr(1)},
			},
			verify: func(t *testing.T, tel *Telemetry) {
				t.Helper()
				assert.IsType(t, &sdktrace.TracerProvider{}, tel.TracerProvider())
				assert.IsType(t, metricnoop.MeterProvider{}, tel.MeterProvider())
				assert.Nil(t, tel.MetricsHandler())
			},
		},
		{
			name: "prometheus metrics",
			config: &Config{
				Enabled: true,
				Metrics: &MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus},
			},
			verify: func(t *testing.T, tel *Telemetry) {
				t.Helper()
				assert.IsType(t, tracenoop.TracerProvider{}, tel.TracerProvider())
				assert.IsType(t, &sdkmetric.MeterProvider{}, tel.MeterProvider())
				assert.NotNil(t, tel.MetricsHandler())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tel, err := New(context.Background(), WithTelemetryConfig(tt.config))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = tel.Shutdown(ctx)
			})

			tt.verify(t, tel)
		})
	}
}

func TestTelemetry_MetricsHandlerServesUpdateMetrics(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(),
		WithTelemetryConfig(&Config{
			Enabled: true,
			Metrics: &MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus},
		}),
		WithServiceVersion("1.2.3"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	metrics, err := NewUpdateMetrics(tel.MeterProvider())
	require.NoError(t, err)
	metrics.RecordSubmission(context.Background(), "worldedit", "SUCCESS_STARTED")

	rec := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "plugin_updater_submissions_total")
	assert.Contains(t, string(body), `component="worldedit"`)
	assert.Contains(t, string(body), `service_version="1.2.3"`)
}

func TestTelemetry_Shutdown(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus},
	}))
	require.NoError(t, err)

	require.NoError(t, tel.Shutdown(context.Background()))
	// A second call has nothing left to stop
	require.NoError(t, tel.Shutdown(context.Background()))
}
