// Package v1 provides the REST handlers for inspecting components and
// submitting update runs.
package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/plugin-updater/internal/api/common"
	"github.com/stacklok/plugin-updater/internal/status"
	"github.com/stacklok/plugin-updater/internal/update"
)

// maxWait bounds how long a submit with ?wait=true holds the connection
const maxWait = 15 * time.Minute

// ComponentResponse is the state of one component
type ComponentResponse struct {
	Name       string          `json:"name"`
	ResourceID string          `json:"resourceId,omitempty"`
	Snapshot   status.Snapshot `json:"snapshot"`
	Phase      update.Phase    `json:"phase"`
	Progress   int             `json:"progress"`
	Running    bool            `json:"running"`
}

// ListResponse lists every component
type ListResponse struct {
	Components []ComponentResponse `json:"components"`
}

// SubmitRequest is the body of a submit call. An empty resourceId falls back
// to the resource the component is configured with.
type SubmitRequest struct {
	ResourceID string `json:"resourceId,omitempty"`
	Lookup     bool   `json:"lookup"`
	Check      bool   `json:"check"`
	Download   bool   `json:"download"`
}

// SubmitResponse is the outcome of a submit call. Final is only set when the
// caller waited for the run.
type SubmitResponse struct {
	update.TryResponse
	Final *status.Snapshot `json:"final,omitempty"`
}

// Routes serves the components of a registry
type Routes struct {
	registry *update.Registry
}

// NewRoutes creates a new Routes instance for the registry
func NewRoutes(registry *update.Registry) *Routes {
	return &Routes{registry: registry}
}

// Router creates the component router
func Router(registry *update.Registry) http.Handler {
	routes := NewRoutes(registry)

	r := chi.NewRouter()
	r.Get("/components", routes.listComponents)
	r.Route("/components/{name}", func(r chi.Router) {
		r.Get("/", routes.getComponent)
		r.Post("/submit", routes.submit)
	})

	return r
}

// listComponents handles GET /v1/components
func (rr *Routes) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := rr.registry.Names()
	resp := ListResponse{Components: make([]ComponentResponse, 0, len(names))}
	for _, name := range names {
		if c, ok := rr.registry.Get(name); ok {
			resp.Components = append(resp.Components, describe(c))
		}
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// getComponent handles GET /v1/components/{name}
func (rr *Routes) getComponent(w http.ResponseWriter, r *http.Request) {
	c, ok := rr.lookup(w, r)
	if !ok {
		return
	}
	common.WriteJSONResponse(w, describe(c), http.StatusOK)
}

// submit handles POST /v1/components/{name}/submit[?wait=true]
func (rr *Routes) submit(w http.ResponseWriter, r *http.Request) {
	c, ok := rr.lookup(w, r)
	if !ok {
		return
	}

	var body SubmitRequest
	if err := common.DecodeJSONBody(r, &body); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	wait := false
	if raw := r.URL.Query().Get("wait"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			common.WriteErrorResponse(w, "wait must be a boolean", http.StatusBadRequest)
			return
		}
		wait = parsed
	}

	req := update.Request{
		ResourceID: body.ResourceID,
		Lookup:     body.Lookup,
		Check:      body.Check,
		Download:   body.Download,
	}
	if req.ResourceID == "" {
		req.ResourceID = c.ResourceID()
	}

	var finished chan status.Snapshot
	var callbacks []update.Callback
	if wait {
		finished = make(chan status.Snapshot, 1)
		callbacks = append(callbacks, func(s status.Snapshot) { finished <- s })
	}

	resp := SubmitResponse{TryResponse: c.Submit(r.Context(), req, callbacks...)}
	if !resp.Result.IsSuccess() {
		common.WriteJSONResponse(w, resp, submitFailureStatus(resp.Result))
		return
	}

	if !wait {
		common.WriteJSONResponse(w, resp, http.StatusAccepted)
		return
	}

	final, err := awaitRun(r.Context(), finished)
	if err != nil {
		slog.Debug("Client stopped waiting for update run",
			"component", c.Name(),
			"error", err)
		common.WriteJSONResponse(w, resp, http.StatusAccepted)
		return
	}

	resp.Final = &final
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

func (rr *Routes) lookup(w http.ResponseWriter, r *http.Request) (*update.Coordinator, bool) {
	name, err := common.GetAndValidateURLParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	c, ok := rr.registry.Get(name)
	if !ok {
		common.WriteErrorResponse(w, "component not found: "+name, http.StatusNotFound)
		return nil, false
	}
	return c, true
}

func awaitRun(ctx context.Context, finished <-chan status.Snapshot) (status.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	select {
	case s := <-finished:
		return s, nil
	case <-ctx.Done():
		return status.Snapshot{}, errors.Join(errors.New("update run still in flight"), ctx.Err())
	}
}

func submitFailureStatus(outcome update.TryOutcome) int {
	if outcome == update.OutcomeFailParameters {
		return http.StatusBadRequest
	}
	return http.StatusConflict
}

func describe(c *update.Coordinator) ComponentResponse {
	return ComponentResponse{
		Name:       c.Name(),
		ResourceID: c.ResourceID(),
		Snapshot:   c.Status(),
		Phase:      c.Phase(),
		Progress:   c.DownloadProgress(),
		Running:    c.Running(),
	}
}
