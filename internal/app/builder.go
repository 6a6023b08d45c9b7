package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/plugin-updater/internal/api"
	"github.com/stacklok/plugin-updater/internal/catalog"
	"github.com/stacklok/plugin-updater/internal/config"
	"github.com/stacklok/plugin-updater/internal/httpclient"
	"github.com/stacklok/plugin-updater/internal/installer"
	"github.com/stacklok/plugin-updater/internal/scheduler"
	"github.com/stacklok/plugin-updater/internal/status"
	"github.com/stacklok/plugin-updater/internal/telemetry"
	"github.com/stacklok/plugin-updater/internal/update"
	"github.com/stacklok/plugin-updater/internal/versions"
)

const (
	defaultHTTPAddress = ":8080"
	defaultReadTimeout = 10 * time.Second
	defaultIdleTimeout = 60 * time.Second

	// defaultWriteTimeout is zero: a waiting submit holds its response for a whole run
	defaultWriteTimeout = 0
)

// UpdaterAppOptions is a function that configures the updater app builder
type UpdaterAppOptions func(*updaterAppConfig) error

// updaterAppConfig collects everything NewUpdaterApp wires together.
// Component overrides are primarily for testing.
type updaterAppConfig struct {
	config     *config.Config
	configPath string

	// Optional component overrides
	fetcher       catalog.Fetcher
	installer     installer.Installer
	settings      config.SettingsProvider
	snapshotStore status.SnapshotStore

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...UpdaterAppOptions) (*updaterAppConfig, error) {
	cfg := &updaterAppConfig{
		address:      defaultHTTPAddress,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
		idleTimeout:  defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return cfg, nil
}

// NewUpdaterApp builds the coordinators, the scheduler and the HTTP server
func NewUpdaterApp(ctx context.Context, opts ...UpdaterAppOptions) (*UpdaterApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	registry, err := buildUpdateComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build update components: %w", err)
	}

	jobs, err := scheduler.JobsFromConfig(cfg.config, registry)
	if err != nil {
		_ = registry.CloseAll(ctx)
		return nil, fmt.Errorf("failed to build schedule: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, registry)
	if err != nil {
		_ = registry.CloseAll(ctx)
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	return &UpdaterApp{
		config: cfg.config,
		components: &AppComponents{
			Registry:  registry,
			Scheduler: scheduler.New(jobs),
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) UpdaterAppOptions {
	return func(cfg *updaterAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithConfigPath makes every run re-read its settings from the config file at path
func WithConfigPath(path string) UpdaterAppOptions {
	return func(cfg *updaterAppConfig) error {
		cfg.configPath = path
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) UpdaterAppOptions {
	return func(cfg *updaterAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) UpdaterAppOptions {
	return func(cfg *updaterAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithMetricsHandler serves handler on /metrics
func WithMetricsHandler(handler http.Handler) UpdaterAppOptions {
	return func(cfg *updaterAppConfig) error {
		cfg.metricsHandler = handler
		return nil
	}
}

// WithFetcher allows injecting a custom catalog fetcher (for testing)
func WithFetcher(f catalog.Fetcher) UpdaterAppOptions {
	return func(cfg *updaterAppConfig) error {
		cfg.fetcher = f
		return nil
	}
}

// WithInstaller allows injecting a custom installer (for testing)
func WithInstaller(i installer.Installer) UpdaterAppOptions {
	return func(cfg *updaterAppConfig) error {
		cfg.installer = i
		return nil
	}
}

// WithSettingsProvider allows injecting a custom settings provider
func WithSettingsProvider(p config.SettingsProvider) UpdaterAppOptions {
	return func(cfg *updaterAppConfig) error {
		cfg.settings = p
		return nil
	}
}

// WithSnapshotStore allows injecting a custom snapshot store (for testing)
func WithSnapshotStore(s status.SnapshotStore) UpdaterAppOptions {
	return func(cfg *updaterAppConfig) error {
		cfg.snapshotStore = s
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for update and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) UpdaterAppOptions {
	return func(cfg *updaterAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for update runs and HTTP requests
func WithTracerProvider(tp trace.TracerProvider) UpdaterAppOptions {
	return func(cfg *updaterAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// buildUpdateComponents creates one coordinator per configured component
func buildUpdateComponents(ctx context.Context, b *updaterAppConfig) (*update.Registry, error) {
	slog.Info("Initializing update components", "component_count", len(b.config.Components))

	if b.fetcher == nil || b.installer == nil {
		client := httpclient.NewDefaultClient(0,
			httpclient.WithConnectTimeout(b.config.Updater.GetConnectTimeout()),
			httpclient.WithUserAgent(versions.UserAgent()),
		)
		if b.fetcher == nil {
			b.fetcher = catalog.NewServerModsFetcher(client, b.config.Updater.Endpoint)
		}
		if b.installer == nil {
			b.installer = installer.NewZipInstaller(client)
		}
	}

	if b.settings == nil {
		settings, err := defaultSettings(b)
		if err != nil {
			return nil, err
		}
		b.settings = settings
	}

	if b.snapshotStore == nil {
		b.snapshotStore = status.NewFileSnapshotStore(b.config.GetStateDir())
	}

	var metrics *telemetry.UpdateMetrics
	if b.meterProvider != nil {
		var err error
		metrics, err = telemetry.NewUpdateMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create update metrics: %w", err)
		}
		slog.Info("Update metrics enabled")
	}

	registry := update.NewRegistry()
	for _, comp := range b.config.Components {
		coord, err := update.New(ctx, comp.Name, b.fetcher, b.installer, b.settings,
			update.WithResourceID(comp.ResourceID),
			update.WithCurrentVersion(comp.CurrentVersion),
			update.WithUpdateFolder(b.config.GetUpdateFolder()),
			update.WithDownloadTimeout(b.config.Updater.GetDownloadTimeout()),
			update.WithSnapshotStore(b.snapshotStore),
			update.WithMetrics(metrics),
			update.WithTracerProvider(b.tracerProvider),
		)
		if err != nil {
			_ = registry.CloseAll(ctx)
			return nil, fmt.Errorf("component %s: %w", comp.Name, err)
		}
		if err := registry.Register(coord); err != nil {
			_ = coord.Close(ctx)
			_ = registry.CloseAll(ctx)
			return nil, err
		}
	}

	slog.Info("Update components initialized successfully")
	return registry, nil
}

// defaultSettings re-reads the config file per run when its path is known,
// and otherwise freezes the settings of the loaded config
func defaultSettings(b *updaterAppConfig) (config.SettingsProvider, error) {
	if b.configPath != "" {
		return config.NewFileSettingsProvider(b.configPath), nil
	}

	apiKey, err := b.config.Updater.GetAPIKey()
	if err != nil {
		return nil, err
	}
	return config.StaticSettings{APIKey: apiKey, Disabled: b.config.Updater.Disabled}, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *updaterAppConfig, registry *update.Registry) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			api.LoggingMiddleware,
		}
	}

	// Instrumentation goes first so it sees every request
	if b.tracerProvider != nil || b.meterProvider != nil {
		instrumentation, err := telemetry.NewHTTPInstrumentation(b.tracerProvider, b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP instrumentation: %w", err)
		}
		b.middlewares = append([]func(http.Handler) http.Handler{instrumentation.Middleware}, b.middlewares...)
		slog.Info("HTTP instrumentation enabled")
	}

	router := api.NewServer(registry,
		api.WithMiddlewares(b.middlewares...),
		api.WithMetricsHandler(b.metricsHandler),
	)

	server := &http.Server{
		Addr:              b.address,
		Handler:           router,
		ReadHeaderTimeout: b.readTimeout,
		ReadTimeout:       b.readTimeout,
		WriteTimeout:      b.writeTimeout,
		IdleTimeout:       b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
