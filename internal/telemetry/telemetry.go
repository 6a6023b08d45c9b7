package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry owns the tracer and meter providers of the process. Disabled
// sections are served by no-op providers, so callers never check for nil.
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// registry is set when metrics are scraped by Prometheus
	registry *promclient.Registry

	shutdowns []func(context.Context) error
}

// Option is a function that configures the telemetry setup
type Option func(*telemetryConfig)

type telemetryConfig struct {
	config         *Config
	serviceVersion string
}

// WithTelemetryConfig sets the telemetry configuration
func WithTelemetryConfig(cfg *Config) Option {
	return func(tc *telemetryConfig) {
		tc.config = cfg
	}
}

// WithServiceVersion sets the version reported when the configuration has none
func WithServiceVersion(version string) Option {
	return func(tc *telemetryConfig) {
		tc.serviceVersion = version
	}
}

// New creates the providers enabled by the configuration and registers them as
// the OpenTelemetry globals. The caller must call Shutdown on exit.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	tc := &telemetryConfig{}
	for _, opt := range opts {
		opt(tc)
	}

	t := &Telemetry{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}

	cfg := tc.config
	if cfg == nil || !cfg.Enabled {
		slog.Debug("Telemetry disabled")
		return t, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	if cfg.ServiceVersion == "" && tc.serviceVersion != "" {
		withVersion := *cfg
		withVersion.ServiceVersion = tc.serviceVersion
		cfg = &withVersion
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.tracingEnabled() {
		tp, err := newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		t.tracerProvider = tp
		t.shutdowns = append(t.shutdowns, tp.Shutdown)

		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		slog.Info("Tracing initialized",
			"endpoint", cfg.GetEndpoint(),
			"sampling_ratio", cfg.Tracing.GetSampling())
	}

	if cfg.metricsEnabled() {
		var reg promclient.Registerer
		if cfg.prometheusEnabled() {
			t.registry = promclient.NewRegistry()
			reg = t.registry
		}

		mp, err := newMeterProvider(ctx, cfg, res, reg)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, err
		}
		t.meterProvider = mp
		t.shutdowns = append(t.shutdowns, mp.Shutdown)

		otel.SetMeterProvider(mp)
		slog.Info("Metrics initialized",
			"exporter", cfg.Metrics.GetExporter(),
			"endpoint", cfg.GetEndpoint())
	}

	if cfg.Insecure && len(t.shutdowns) > 0 {
		slog.Warn("Telemetry is exported over plain HTTP")
	}

	return t, nil
}

// TracerProvider returns the tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// MetricsHandler returns the Prometheus scrape handler, or nil when metrics are
// not exported to Prometheus
func (t *Telemetry) MetricsHandler() http.Handler {
	if t.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Shutdown flushes and stops every SDK provider. Safe to call more than once.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	shutdowns := t.shutdowns
	t.shutdowns = nil

	var errs []error
	for _, shutdown := range shutdowns {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to shut down telemetry: %w", errors.Join(errs...))
	}
	return nil
}
