package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func floatPtr(f float64) *float64 {
	return &f
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())

	cfg = &Config{ServiceName: "updater-eu", ServiceVersion: "1.4.0", Endpoint: "otel:4318"}
	assert.Equal(t, "updater-eu", cfg.GetServiceName())
	assert.Equal(t, "1.4.0", cfg.GetServiceVersion())
	assert.Equal(t, "otel:4318", cfg.GetEndpoint())
}

func TestTracingConfig_GetSampling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config *TracingConfig
		want   float64
	}{
		{name: "nil config", config: nil, want: DefaultSampling},
		{name: "unset", config: &TracingConfig{Enabled: true}, want: DefaultSampling},
		{name: "explicit zero", config: &TracingConfig{Enabled: true, Sampling: floatPtr(0)}, want: 0},
		{name: "explicit ratio", config: &TracingConfig{Enabled: true, Sampling: floatPtr(0.5)}, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, tt.config.GetSampling(), 0.0001)
		})
	}
}

func TestMetricsConfig_Getters(t *testing.T) {
	t.Parallel()

	var nilCfg *MetricsConfig
	assert.Equal(t, MetricsExporterOTLP, nilCfg.GetExporter())
	assert.Equal(t, DefaultMetricsInterval, nilCfg.GetInterval())

	cfg := &MetricsConfig{Exporter: MetricsExporterPrometheus, Interval: "15s"}
	assert.Equal(t, MetricsExporterPrometheus, cfg.GetExporter())
	assert.Equal(t, 15*time.Second, cfg.GetInterval())

	assert.Equal(t, DefaultMetricsInterval, (&MetricsConfig{Interval: "soon"}).GetInterval())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{name: "nil config", config: nil},
		{
			name:   "disabled config skips sections",
			config: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(7)}},
		},
		{
			name: "valid full config",
			config: &Config{
				Enabled:  true,
				Endpoint: "collector:4318",
				Tracing:  &TracingConfig{Enabled: true, Sampling: floatPtr(1)},
				Metrics:  &MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus},
			},
		},
		{
			name:    "endpoint with scheme",
			config:  &Config{Enabled: true, Endpoint: "http://collector:4318"},
			wantErr: "endpoint must be host:port",
		},
		{
			name:    "sampling above one",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(1.1)}},
			wantErr: "tracing: sampling must be between 0.0 and 1.0",
		},
		{
			name:    "negative sampling",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(-0.1)}},
			wantErr: "tracing: sampling must be between 0.0 and 1.0",
		},
		{
			name:   "invalid sampling on disabled tracing",
			config: &Config{Enabled: true, Tracing: &TracingConfig{Sampling: floatPtr(2)}},
		},
		{
			name:    "unknown exporter",
			config:  &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Exporter: "statsd"}},
			wantErr: `metrics: exporter must be "otlp" or "prometheus"`,
		},
		{
			name:    "unparseable interval",
			config:  &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Interval: "often"}},
			wantErr: "metrics: interval must be a valid duration",
		},
		{
			name:    "interval too short",
			config:  &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Interval: "100ms"}},
			wantErr: "metrics: interval must be at least 1s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_EnabledSections(t *testing.T) {
	t.Parallel()

	var nilCfg *Config
	assert.False(t, nilCfg.tracingEnabled())
	assert.False(t, nilCfg.metricsEnabled())

	cfg := &Config{
		Tracing: &TracingConfig{Enabled: true},
		Metrics: &MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus},
	}
	assert.False(t, cfg.tracingEnabled(), "master switch is off")
	assert.False(t, cfg.prometheusEnabled())

	cfg.Enabled = true
	assert.True(t, cfg.tracingEnabled())
	assert.True(t, cfg.metricsEnabled())
	assert.True(t, cfg.prometheusEnabled())
}

func TestConfig_UnmarshalYAML(t *testing.T) {
	t.Parallel()

	data := `enabled: true
endpoint: collector:4318
insecure: true
headers:
  authorization: Bearer abc
tracing:
  enabled: true
  sampling: 0
metrics:
  enabled: true
  exporter: prometheus
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(data), &cfg))

	require.NotNil(t, cfg.Tracing.Sampling)
	assert.InDelta(t, 0.0, cfg.Tracing.GetSampling(), 0.0001)
	assert.Equal(t, map[string]string{"authorization": "Bearer abc"}, cfg.Headers)
	assert.True(t, cfg.prometheusEnabled())
	assert.NoError(t, cfg.Validate())
}
