package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/plugin-updater/internal/api/common"
	"github.com/stacklok/plugin-updater/internal/update"
	"github.com/stacklok/plugin-updater/internal/versions"
)

// HealthRouter creates a router for the health, readiness and version endpoints
func HealthRouter(registry *update.Registry) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(registry))
	r.Get("/version", versionHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler reports ready once at least one component is registered
func readinessHandler(registry *update.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		count := len(registry.Names())
		if count == 0 {
			common.WriteErrorResponse(w, "no components registered", http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, ReadinessResponse{Status: "ready", Components: count}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
