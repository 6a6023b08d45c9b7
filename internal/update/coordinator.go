package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/plugin-updater/internal/catalog"
	"github.com/stacklok/plugin-updater/internal/config"
	"github.com/stacklok/plugin-updater/internal/installer"
	"github.com/stacklok/plugin-updater/internal/status"
	"github.com/stacklok/plugin-updater/internal/telemetry"
)

const (
	// TracerName is the instrumentation name of update spans
	TracerName = "github.com/stacklok/plugin-updater/update"

	// snapshotSaveTimeout bounds persisting the final snapshot of a run
	snapshotSaveTimeout = 5 * time.Second
)

// Callback receives the final snapshot of the run it was queued on
type Callback func(status.Snapshot)

// Request asks for an update run against a catalog resource
type Request struct {
	ResourceID string `json:"resourceId"`
	Lookup     bool   `json:"lookup"`
	Check      bool   `json:"check"`
	Download   bool   `json:"download"`
}

// Flags returns the phase flags of the request
func (r Request) Flags() PhaseFlags {
	return PhaseFlags{Lookup: r.Lookup, Check: r.Check, Download: r.Download}
}

// Coordinator owns the update runs of one component. At most one run is in
// flight at any time; concurrent submissions join it.
type Coordinator struct {
	name            string
	resourceID      string
	currentVersion  string
	updateFolder    string
	downloadTimeout time.Duration

	fetcher   catalog.Fetcher
	installer installer.Installer
	settings  config.SettingsProvider
	store     status.SnapshotStore
	metrics   *telemetry.UpdateMetrics
	tracer    trace.Tracer

	// runCtx is the parent of every run; cancelled by Close
	runCtx    context.Context
	cancelRun context.CancelFunc

	// mu serialises starting, joining and finishing runs
	mu     sync.Mutex
	closed bool

	// lastDone is closed once the latest run and its callbacks are done
	lastDone <-chan struct{}

	// Written under mu, read without it
	active   atomic.Pointer[worker]
	snapshot atomic.Pointer[status.Snapshot]
	progress atomic.Int32
}

// Option is a function that configures the coordinator
type Option func(*Coordinator)

// WithResourceID sets the catalog resource the component is published under
func WithResourceID(id string) Option {
	return func(c *Coordinator) {
		c.resourceID = id
	}
}

// WithCurrentVersion sets the running version compared in the Check phase
func WithCurrentVersion(version string) Option {
	return func(c *Coordinator) {
		c.currentVersion = version
	}
}

// WithUpdateFolder sets the folder downloads are staged in
func WithUpdateFolder(folder string) Option {
	return func(c *Coordinator) {
		c.updateFolder = folder
	}
}

// WithDownloadTimeout bounds the Download phase
func WithDownloadTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.downloadTimeout = timeout
		}
	}
}

// WithSnapshotStore persists the final snapshot of every run and restores the
// last one when the coordinator is created
func WithSnapshotStore(store status.SnapshotStore) Option {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithMetrics sets the update metrics for the coordinator
func WithMetrics(metrics *telemetry.UpdateMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// WithTracerProvider enables tracing of update runs
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *Coordinator) {
		if provider != nil {
			c.tracer = provider.Tracer(TracerName)
		}
	}
}

// New creates a coordinator for the named component
func New(
	ctx context.Context,
	name string,
	fetcher catalog.Fetcher,
	inst installer.Installer,
	settings config.SettingsProvider,
	opts ...Option,
) (*Coordinator, error) {
	if name == "" {
		return nil, errors.New("component name is required")
	}
	if fetcher == nil || inst == nil {
		return nil, errors.New("fetcher and installer are required")
	}
	if settings == nil {
		settings = config.StaticSettings{}
	}

	c := &Coordinator{
		name:            name,
		updateFolder:    config.DefaultUpdateFolder,
		downloadTimeout: config.DefaultDownloadTimeout,
		fetcher:         fetcher,
		installer:       inst,
		settings:        settings,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.runCtx, c.cancelRun = context.WithCancel(context.WithoutCancel(ctx))

	initial := c.restoreSnapshot(ctx)
	c.snapshot.Store(&initial)
	if initial.Status == status.CodeUpdateDownloaded {
		c.progress.Store(100)
	}

	return c, nil
}

// restoreSnapshot loads the last persisted snapshot. A run that was interrupted
// mid-flight is reported as READY with whatever metadata it had.
func (c *Coordinator) restoreSnapshot(ctx context.Context) status.Snapshot {
	if c.store == nil {
		return status.NewSnapshot()
	}

	snapshot, err := c.store.LoadSnapshot(ctx, c.name)
	if err != nil {
		slog.Warn("Failed to restore update snapshot, starting fresh",
			"component", c.name,
			"error", err)
		return status.NewSnapshot()
	}

	if snapshot.Status == status.CodePleaseWait {
		slog.Info("Previous update run was interrupted",
			"component", c.name)
		snapshot.Status = status.CodeReady
	}

	return snapshot
}

// Name returns the component name
func (c *Coordinator) Name() string {
	return c.name
}

// ResourceID returns the configured catalog resource, empty if none was set
func (c *Coordinator) ResourceID() string {
	return c.resourceID
}

// Submit starts a run with the requested flags, or joins the run in flight.
// Callbacks run once when the run they were queued on finishes; they are only
// queued when the outcome is a success.
func (c *Coordinator) Submit(ctx context.Context, req Request, callbacks ...Callback) TryResponse {
	resp := c.submit(req, callbacks)

	c.metrics.RecordSubmission(ctx, c.name, string(resp.Result))
	slog.Debug("Update submission",
		"component", c.name,
		"result", resp.Result,
		"requested", resp.FlagsRequested.String(),
		"after", resp.FlagsAfter.String())

	return resp
}

func (c *Coordinator) submit(req Request, callbacks []Callback) TryResponse {
	requested := req.Flags()
	if !requested.Any() || !config.ValidResourceID(req.ResourceID) {
		return TryResponse{Result: OutcomeFailParameters, FlagsRequested: requested}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return TryResponse{Result: OutcomeFailBusy, FlagsRequested: requested}
	}

	// Nothing to check or download against without a previous lookup
	forcedLookup := false
	if (requested.Check || requested.Download) && !requested.Lookup && !c.snapshot.Load().HasAllValues() {
		requested.Lookup = true
		forcedLookup = true
	}

	w := c.active.Load()
	if w == nil {
		w = c.startLocked(req.ResourceID, requested)
		w.callbacks = append(w.callbacks, callbacks...)
		return TryResponse{
			Result:          OutcomeSuccessStarted,
			FlagsRequested:  requested,
			FlagsAfter:      requested,
			CallbacksQueued: len(callbacks) > 0,
		}
	}

	return c.joinLocked(w, req.ResourceID, requested, forcedLookup, callbacks)
}

// joinLocked reconciles a request with the run in flight. Flag upgrades and
// callback registration happen under mu, and finish takes mu before draining
// callbacks, so a joined callback is never lost.
func (c *Coordinator) joinLocked(
	w *worker, resourceID string, requested PhaseFlags, forcedLookup bool, callbacks []Callback,
) TryResponse {
	resp := TryResponse{FlagsRequested: requested}

	// A run is bound to its resource; the metadata it fetches is useless here
	if w.resourceID != resourceID {
		resp.Result = OutcomeFailBusy
		resp.FlagsAfter = w.state.load().flags
		return resp
	}

	for _, p := range []Phase{PhaseCheck, PhaseDownload} {
		if requested.Has(p) && !w.state.tryFlag(p) {
			slog.Debug("Flag rejected, run already entered the phase",
				"component", c.name,
				"run_id", w.id,
				"phase", p.String())
		}
	}

	resp.FlagsAfter = w.state.load().flags
	if forcedLookup && !resp.FlagsAfter.Lookup {
		resp.Result = OutcomeFailURValues
		return resp
	}

	resp.Result = classifyJoin(requested, resp.FlagsAfter)
	if resp.Result.IsSuccess() && len(callbacks) > 0 {
		w.callbacks = append(w.callbacks, callbacks...)
		resp.CallbacksQueued = true
	}

	return resp
}

// startLocked creates a run and publishes PLEASE_WAIT before the worker can
// do anything, so no reader sees the terminal status of the previous run
func (c *Coordinator) startLocked(resourceID string, flags PhaseFlags) *worker {
	waiting := c.snapshot.Load().WithStatus(status.CodePleaseWait)

	w := newWorker(c, resourceID, flags, waiting)
	c.active.Store(w)
	c.lastDone = w.done
	c.progress.Store(0)
	c.snapshot.Store(&waiting)

	w.logger.Info("Starting update run",
		"flags", flags.String(),
		"resource_id", resourceID)

	go w.run(c.runCtx)
	return w
}

// publish replaces the snapshot while a run is in flight
func (c *Coordinator) publish(snapshot status.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.Store(&snapshot)
}

// finish is the single exit point of a run. It publishes the final snapshot,
// clears the active run and then runs every queued callback exactly once.
func (c *Coordinator) finish(w *worker, final status.Snapshot, elapsed time.Duration) {
	c.mu.Lock()
	c.snapshot.Store(&final)
	if final.Status == status.CodeUpdateDownloaded {
		c.progress.Store(100)
	}
	c.active.CompareAndSwap(w, nil)
	callbacks := w.callbacks
	w.callbacks = nil
	c.mu.Unlock()

	defer close(w.done)

	c.metrics.RecordRun(c.runCtx, c.name, string(final.Status), elapsed)
	c.persist(final)

	for _, cb := range callbacks {
		c.runCallback(w, cb, final)
	}
}

func (c *Coordinator) persist(snapshot status.Snapshot) {
	if c.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.runCtx), snapshotSaveTimeout)
	defer cancel()

	if err := c.store.SaveSnapshot(ctx, c.name, snapshot); err != nil {
		slog.Error("Failed to persist update snapshot",
			"component", c.name,
			"error", err)
	}
}

func (*Coordinator) runCallback(w *worker, cb Callback, snapshot status.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Update callback panicked", "panic", fmt.Sprint(r))
		}
	}()
	cb(snapshot)
}

// Status returns the latest snapshot. It never blocks.
func (c *Coordinator) Status() status.Snapshot {
	return *c.snapshot.Load()
}

// DownloadProgress returns the download progress of the latest run in percent
func (c *Coordinator) DownloadProgress() int {
	if c.snapshot.Load().Status == status.CodeUpdateDownloaded {
		return 100
	}
	return int(c.progress.Load())
}

// Phase returns the phase of the run in flight, or PhaseIdle
func (c *Coordinator) Phase() Phase {
	w := c.active.Load()
	if w == nil {
		return PhaseIdle
	}
	return w.state.load().phase
}

// Running reports whether a run is in flight
func (c *Coordinator) Running() bool {
	return c.active.Load() != nil
}

// Wait blocks until the latest run, if any, has finished and its callbacks
// have returned
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.lastDone
	c.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further submissions, cancels the run in flight and waits for it
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancelRun()
	return c.Wait(ctx)
}
