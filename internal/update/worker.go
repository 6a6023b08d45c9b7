package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/plugin-updater/internal/catalog"
	"github.com/stacklok/plugin-updater/internal/config"
	"github.com/stacklok/plugin-updater/internal/otel"
	"github.com/stacklok/plugin-updater/internal/status"
	"github.com/stacklok/plugin-updater/internal/versions"
)

// worker is one update run. It is started by its coordinator and reports back
// only through publish and finish.
type worker struct {
	coord      *Coordinator
	id         string
	resourceID string
	state      *stateCell
	logger     *slog.Logger

	// snapshot is the working copy; only the worker goroutine touches it
	snapshot status.Snapshot

	// callbacks is guarded by coord.mu
	callbacks []Callback

	downloaded atomic.Int64
	done       chan struct{}
}

func newWorker(c *Coordinator, resourceID string, flags PhaseFlags, waiting status.Snapshot) *worker {
	id := uuid.NewString()
	return &worker{
		coord:      c,
		id:         id,
		resourceID: resourceID,
		state:      newStateCell(flags),
		logger:     slog.With("component", c.name, "run_id", id),
		snapshot:   waiting,
		done:       make(chan struct{}),
	}
}

// run executes the pipeline and always ends in coord.finish
func (w *worker) run(ctx context.Context) {
	start := time.Now()
	var code status.Code

	ctx, span := otel.StartSpan(ctx, w.coord.tracer, "update.run",
		trace.WithAttributes(
			otel.AttrComponent.String(w.coord.name),
			otel.AttrResourceID.String(w.resourceID),
			otel.AttrRunID.String(w.id),
			otel.AttrFlags.String(w.state.load().flags.String()),
		),
	)

	defer func() {
		if r := recover(); r != nil {
			if w.state.load().phase == PhaseDownload {
				code = status.CodeFailDownload
			} else {
				code = status.CodeFailConnection
			}
			err := fmt.Errorf("update run panicked: %v", r)
			otel.RecordError(span, err)
			w.logger.Error("Update run panicked", "panic", fmt.Sprint(r))
		}

		w.state.advance(PhaseIdle)
		otel.SetOutcome(span, string(code), code.IsFailure())
		span.End()

		elapsed := time.Since(start)
		w.logger.Info("Update run finished",
			"status", code,
			"duration", elapsed)
		w.coord.finish(w, w.snapshot.WithStatus(code), elapsed)
	}()

	code = w.pipeline(ctx)
}

// pipeline visits every phase in order. A phase whose flag is off is still
// entered, so flag upgrades are judged against the phase order alone.
func (w *worker) pipeline(ctx context.Context) status.Code {
	settings := w.loadSettings(ctx)
	if settings.Disabled {
		w.logger.Info("Updates are disabled by configuration")
		return status.CodeDisabled
	}

	st := w.state.advance(PhaseLookup)
	if st.flags.Lookup {
		if code, ok := w.lookup(ctx, settings.APIKey); !ok {
			return code
		}
	}

	st = w.state.advance(PhaseCheck)
	if st.flags.Check {
		if code, ok := w.check(); !ok {
			return code
		}
	}

	st = w.state.advance(PhaseDownload)
	if !st.flags.Download {
		if st.flags.Check {
			return status.CodeUpdateAvailable
		}
		return status.CodeLookupSuccess
	}

	return w.download(ctx)
}

// loadSettings reads the settings of this run. A provider failure leaves the
// run enabled without an API key.
func (w *worker) loadSettings(ctx context.Context) config.Settings {
	settings, err := w.coord.settings.Settings(ctx)
	if err != nil {
		w.logger.Warn("Failed to read updater settings, continuing with defaults", "error", err)
		return config.Settings{}
	}
	return settings
}

// lookup fetches the latest release. ok is false when the run must stop with code.
func (w *worker) lookup(ctx context.Context, apiKey string) (code status.Code, ok bool) {
	ctx, span := otel.StartSpan(ctx, w.coord.tracer, "update.lookup")
	defer span.End()

	w.snapshot = w.snapshot.Cleared()
	w.coord.publish(w.snapshot)

	release, err := w.coord.fetcher.Fetch(ctx, w.resourceID, apiKey)
	if err != nil {
		otel.RecordError(span, err)
		code = lookupFailure(err)
		w.logger.Warn("Catalog lookup failed", "status", code, "error", err)
		return code, false
	}

	version, err := versions.ParseReleaseName(release.Name)
	if err != nil {
		otel.RecordError(span, err)
		w.logger.Warn("Latest release has no usable version", "name", release.Name)
		return status.CodeFailNoVersion, false
	}

	w.snapshot.Name = release.Name
	w.snapshot.Version = version
	w.snapshot.Link = release.Link
	w.snapshot.ReleaseType = release.ReleaseType
	w.snapshot.GameVersion = release.GameVersion
	w.coord.publish(w.snapshot)

	span.SetAttributes(otel.AttrReleaseVersion.String(version))
	w.logger.Info("Catalog lookup succeeded",
		"version", version,
		"release_type", release.ReleaseType)
	return "", true
}

func lookupFailure(err error) status.Code {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return status.CodeFailBadID
	case errors.Is(err, catalog.ErrForbidden):
		return status.CodeFailAPIKey
	default:
		return status.CodeFailConnection
	}
}

// check compares the running version with the release. ok is true when an
// update is available.
func (w *worker) check() (code status.Code, ok bool) {
	current := w.coord.currentVersion
	remote := w.snapshot.Version

	if versions.HasSpecialTag(current) {
		w.logger.Info("Running a pre-release build, not updating", "current_version", current)
		return status.CodeSpecialTag, false
	}

	if versions.SameVersion(current, remote) {
		w.logger.Info("Already up to date", "current_version", current)
		return status.CodeNoUpdate, false
	}

	if !versions.IsNewerVersion(remote, current) {
		w.logger.Warn("Catalog release is older than the running version",
			"current_version", current,
			"remote_version", remote)
	}

	w.logger.Info("Update available",
		"current_version", current,
		"remote_version", remote)
	return "", true
}

// download stages the release artifact under the download timeout
func (w *worker) download(ctx context.Context) status.Code {
	ctx, cancel := context.WithTimeout(ctx, w.coord.downloadTimeout)
	defer cancel()

	ctx, span := otel.StartSpan(ctx, w.coord.tracer, "update.download",
		trace.WithAttributes(otel.AttrReleaseVersion.String(w.snapshot.Version)),
	)
	defer span.End()

	if w.snapshot.Link == "" {
		w.logger.Warn("Release has no download link")
		return status.CodeFailDownload
	}

	result, err := w.coord.installer.Stage(ctx, w.snapshot.Link, w.coord.updateFolder, w.onBytes)
	w.coord.metrics.RecordDownloadedBytes(ctx, w.coord.name, w.downloaded.Load())
	if err != nil {
		otel.RecordError(span, err)
		w.logger.Error("Download failed", "error", err)
		return status.CodeFailDownload
	}

	var files []string
	if result != nil {
		files = result.FilesWritten
	}

	w.coord.progress.Store(100)
	span.SetAttributes(otel.AttrFilesWritten.Int(len(files)))
	w.logger.Info("Update downloaded",
		"version", w.snapshot.Version,
		"files", files)
	return status.CodeUpdateDownloaded
}

// onBytes feeds DownloadProgress. Without a known total the progress stays at 0
// until the download completes.
func (w *worker) onBytes(downloaded, total int64) {
	w.downloaded.Store(downloaded)
	if total <= 0 {
		return
	}
	pct := downloaded * 100 / total
	if pct > 100 {
		pct = 100
	}
	w.coord.progress.Store(int32(pct))
}
