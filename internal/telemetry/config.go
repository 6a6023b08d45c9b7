// Package telemetry wires OpenTelemetry into the plugin updater. Update runs and
// API requests are traced over OTLP; metrics are pushed over OTLP or scraped by
// Prometheus.
package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultServiceName is reported when the configuration names no service
	DefaultServiceName = "plugin-updater"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling samples 5% of traces
	DefaultSampling = 0.05

	// DefaultMetricsInterval is how often metrics are pushed over OTLP
	DefaultMetricsInterval = 60 * time.Second

	// MetricsExporterOTLP pushes metrics to the OTLP endpoint
	MetricsExporterOTLP = "otlp"

	// MetricsExporterPrometheus exposes metrics for scraping on /metrics
	MetricsExporterPrometheus = "prometheus"

	unknownVersion = "unknown"
)

// Config is the telemetry section of the updater configuration
type Config struct {
	// Enabled is the master switch; nothing is exported while it is false
	Enabled bool `yaml:"enabled"`

	ServiceName    string `yaml:"serviceName,omitempty"`
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the collector as "host:port". The /v1/traces and /v1/metrics
	// paths are appended by the exporters.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure sends OTLP over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	// Headers are added to every OTLP export, typically collector credentials
	Headers map[string]string `yaml:"headers,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of traces kept, from 0 to 1. Unset uses DefaultSampling.
	Sampling *float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls metric export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is "otlp" (default) or "prometheus"
	Exporter string `yaml:"exporter,omitempty"`

	// Interval is the OTLP push interval (e.g. "30s"). Ignored by Prometheus.
	Interval string `yaml:"interval,omitempty"`
}

// GetServiceName returns the service name, using DefaultServiceName if not specified
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, using "unknown" if not specified
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return unknownVersion
	}
	return c.ServiceVersion
}

// GetEndpoint returns the collector endpoint, using DefaultEndpoint if not specified
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

func (c *Config) tracingEnabled() bool {
	return c != nil && c.Enabled && c.Tracing != nil && c.Tracing.Enabled
}

func (c *Config) metricsEnabled() bool {
	return c != nil && c.Enabled && c.Metrics != nil && c.Metrics.Enabled
}

func (c *Config) prometheusEnabled() bool {
	return c.metricsEnabled() && c.Metrics.GetExporter() == MetricsExporterPrometheus
}

// GetSampling returns the sampling ratio, using DefaultSampling if not specified
func (c *TracingConfig) GetSampling() float64 {
	if c == nil || c.Sampling == nil {
		return DefaultSampling
	}
	return *c.Sampling
}

// GetExporter returns the exporter, using OTLP if not specified
func (c *MetricsConfig) GetExporter() string {
	if c == nil || c.Exporter == "" {
		return MetricsExporterOTLP
	}
	return c.Exporter
}

// GetInterval returns the push interval, using DefaultMetricsInterval if not
// specified or invalid
func (c *MetricsConfig) GetInterval() time.Duration {
	if c == nil || c.Interval == "" {
		return DefaultMetricsInterval
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return DefaultMetricsInterval
	}
	return d
}

// Validate checks the sections that are enabled. A nil or disabled config is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if strings.Contains(c.Endpoint, "://") {
		errs = append(errs, fmt.Errorf("endpoint must be host:port without a scheme, got %q", c.Endpoint))
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks the sampling ratio
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled || c.Sampling == nil {
		return nil
	}
	if s := *c.Sampling; s < 0 || s > 1 {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %g", s)
	}
	return nil
}

// Validate checks the exporter and the push interval
func (c *MetricsConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	switch c.GetExporter() {
	case MetricsExporterOTLP, MetricsExporterPrometheus:
	default:
		return fmt.Errorf("exporter must be %q or %q, got %q", MetricsExporterOTLP, MetricsExporterPrometheus, c.Exporter)
	}

	if c.Interval != "" {
		d, err := time.ParseDuration(c.Interval)
		if err != nil {
			return fmt.Errorf("interval must be a valid duration (e.g., '30s'): %w", err)
		}
		if d < time.Second {
			return fmt.Errorf("interval must be at least 1s, got %s", c.Interval)
		}
	}
	return nil
}
