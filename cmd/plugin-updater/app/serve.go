package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	updaterapp "github.com/stacklok/plugin-updater/internal/app"
	"github.com/stacklok/plugin-updater/internal/telemetry"
	"github.com/stacklok/plugin-updater/internal/versions"
)

// defaultGracefulTimeout bounds the shutdown, including cancelling in-flight runs
const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the updater service",
		Long: `Run the updater service: periodic background runs for every component with a
schedule, and an HTTP API to inspect components and submit runs on demand.`,
		RunE: runServe,
	}
	cmd.Flags().String("address", ":8080", "Address to listen on")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return err
	}

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(cfg.Telemetry),
		telemetry.WithServiceVersion(versions.GetVersionInfo().Version),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultGracefulTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	updater, err := updaterapp.NewUpdaterApp(ctx,
		updaterapp.WithConfig(cfg),
		updaterapp.WithConfigPath(configPath),
		updaterapp.WithAddress(address),
		updaterapp.WithMeterProvider(tel.MeterProvider()),
		updaterapp.WithTracerProvider(tel.TracerProvider()),
		updaterapp.WithMetricsHandler(tel.MetricsHandler()),
	)
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(updater.Start)
	g.Go(func() error {
		<-gctx.Done()
		return updater.Stop(defaultGracefulTimeout)
	})

	return g.Wait()
}
