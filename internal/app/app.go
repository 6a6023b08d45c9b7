// Package app provides application lifecycle management for the plugin updater.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklok/plugin-updater/internal/config"
	"github.com/stacklok/plugin-updater/internal/update"
)

// UpdaterApp encapsulates all components needed to run the updater service.
// It provides lifecycle management and graceful shutdown capabilities.
type UpdaterApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the scheduler in the background and then the HTTP server.
// It blocks until the HTTP server stops or encounters an error.
func (app *UpdaterApp) Start() error {
	go func() {
		if err := app.components.Scheduler.Start(app.ctx); err != nil {
			slog.Error("Update scheduler failed", "error", err)
		}
	}()

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout. The scheduler
// stops first so no new run starts, then the HTTP server drains and finally
// every in-flight run is cancelled and awaited.
func (app *UpdaterApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	if err := app.components.Scheduler.Stop(); err != nil {
		slog.Error("Failed to stop update scheduler", "error", err)
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if err := app.components.Registry.CloseAll(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("update runs did not finish: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *UpdaterApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *UpdaterApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Registry returns the coordinators of the configured components
func (app *UpdaterApp) Registry() *update.Registry {
	return app.components.Registry
}
