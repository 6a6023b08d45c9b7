package app

import (
	"github.com/stacklok/plugin-updater/internal/scheduler"
	"github.com/stacklok/plugin-updater/internal/update"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Registry holds one update coordinator per configured component
	Registry *update.Registry

	// Scheduler submits the periodic background runs
	Scheduler scheduler.Scheduler
}
