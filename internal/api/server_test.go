package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/plugin-updater/internal/api"
	catalogmocks "github.com/stacklok/plugin-updater/internal/catalog/mocks"
	"github.com/stacklok/plugin-updater/internal/config"
	installermocks "github.com/stacklok/plugin-updater/internal/installer/mocks"
	"github.com/stacklok/plugin-updater/internal/update"
)

func newRegistry(t *testing.T, names ...string) *update.Registry {
	t.Helper()
	ctrl := gomock.NewController(t)

	registry := update.NewRegistry()
	for _, name := range names {
		c, err := update.New(context.Background(), name,
			catalogmocks.NewMockFetcher(ctrl),
			installermocks.NewMockInstaller(ctrl),
			config.StaticSettings{},
			update.WithUpdateFolder(t.TempDir()),
		)
		require.NoError(t, err)
		require.NoError(t, registry.Register(c))
	}
	t.Cleanup(func() { _ = registry.CloseAll(context.Background()) })
	return registry
}

func serve(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	server := api.NewServer(newRegistry(t))
	rr := serve(t, server, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		components     []string
		expectedStatus int
		expectedKey    string
	}{
		{
			name:           "components registered",
			components:     []string{"worldedit", "essentials"},
			expectedStatus: http.StatusOK,
			expectedKey:    "status",
		},
		{
			name:           "no components",
			expectedStatus: http.StatusServiceUnavailable,
			expectedKey:    "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := api.NewServer(newRegistry(t, tt.components...))
			rr := serve(t, server, http.MethodGet, "/readiness")

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var response map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Contains(t, response, tt.expectedKey)
			if tt.expectedStatus == http.StatusOK {
				assert.InDelta(t, float64(len(tt.components)), response["components"], 0)
			}
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	server := api.NewServer(newRegistry(t))
	rr := serve(t, server, http.MethodGet, "/version")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))

	assert.Contains(t, response, "version")
	assert.Contains(t, response, "commit")
	assert.Contains(t, response, "build_date")
	assert.Contains(t, response, "go_version")
	assert.Contains(t, response, "platform")
}

func TestComponentsMounted(t *testing.T) {
	t.Parallel()

	server := api.NewServer(newRegistry(t, "worldedit"))

	assert.Equal(t, http.StatusOK, serve(t, server, http.MethodGet, "/v1/components").Code)
	assert.Equal(t, http.StatusOK, serve(t, server, http.MethodGet, "/v1/components/worldedit").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, server, http.MethodGet, "/v1/components/unknown").Code)
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	t.Run("mounted when provided", func(t *testing.T) {
		t.Parallel()
		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("plugin_updater_submissions_total 1\n"))
		})

		server := api.NewServer(newRegistry(t), api.WithMetricsHandler(metrics))
		rr := serve(t, server, http.MethodGet, "/metrics")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "plugin_updater_submissions_total")
	})

	t.Run("absent by default", func(t *testing.T) {
		t.Parallel()
		server := api.NewServer(newRegistry(t))
		assert.Equal(t, http.StatusNotFound, serve(t, server, http.MethodGet, "/metrics").Code)
	})
}

func TestMiddlewares(t *testing.T) {
	t.Parallel()

	var seen []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = append(seen, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	server := api.NewServer(newRegistry(t),
		api.WithMiddlewares(tag("first"), api.LoggingMiddleware),
		api.WithMiddlewares(tag("second")),
	)
	rr := serve(t, server, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"first", "second"}, seen)
}
