package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/plugin-updater/internal/config"
	"github.com/stacklok/plugin-updater/internal/status"
	"github.com/stacklok/plugin-updater/internal/update"
)

// jitterFraction is the maximum random offset applied to an interval, as a fraction of it
const jitterFraction = 10

//go:generate mockgen -destination=mocks/mock_submitter.go -package=mocks -source=scheduler.go Submitter

// Submitter accepts update requests; *update.Coordinator implements it
type Submitter interface {
	Submit(ctx context.Context, req update.Request, callbacks ...update.Callback) update.TryResponse
}

// Job is one periodic update run
type Job struct {
	Name       string
	ResourceID string
	Interval   time.Duration
	Check      bool
	Download   bool
	Target     Submitter
}

func (j Job) request() update.Request {
	return update.Request{
		ResourceID: j.ResourceID,
		Lookup:     true,
		Check:      j.Check,
		Download:   j.Download,
	}
}

// Scheduler runs periodic update submissions in the background
type Scheduler interface {
	// Start runs every job loop. It blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop cancels the job loops and waits for Start to return
	Stop() error
}

type defaultScheduler struct {
	jobs []Job

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}

	// nextInterval is replaced in tests
	nextInterval func(time.Duration) time.Duration
}

// New creates a scheduler for the given jobs
func New(jobs []Job) Scheduler {
	return &defaultScheduler{
		jobs:         jobs,
		nextInterval: jitteredInterval,
	}
}

// JobsFromConfig builds a job for every component with a schedule. Components
// must already be registered.
func JobsFromConfig(cfg *config.Config, registry *update.Registry) ([]Job, error) {
	var jobs []Job
	for i := range cfg.Components {
		comp := &cfg.Components[i]
		if comp.Schedule == nil {
			continue
		}

		coord, ok := registry.Get(comp.Name)
		if !ok {
			return nil, fmt.Errorf("component %q has a schedule but is not registered", comp.Name)
		}

		jobs = append(jobs, Job{
			Name:       comp.Name,
			ResourceID: comp.ResourceID,
			Interval:   comp.Schedule.GetInterval(),
			Check:      comp.Schedule.Check,
			Download:   comp.Schedule.Download,
			Target:     coord,
		})
	}
	return jobs, nil
}

// jitteredInterval returns base shifted by a random offset of at most base/jitterFraction
func jitteredInterval(base time.Duration) time.Duration {
	jitter := base / jitterFraction
	if jitter <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return base + offset
}

// Start runs every job loop until ctx is cancelled or Stop is called
func (s *defaultScheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return fmt.Errorf("job %q: interval must be positive", job.Name)
		}
		if job.Target == nil {
			return fmt.Errorf("job %q: target is required", job.Name)
		}
	}

	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	schedCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	slog.Info("Starting update scheduler", "job_count", len(s.jobs))
	defer func() {
		close(done)
		slog.Info("Update scheduler shutting down")
	}()

	g, gctx := errgroup.WithContext(schedCtx)
	for _, job := range s.jobs {
		g.Go(func() error {
			s.loop(gctx, job)
			return nil
		})
	}

	return g.Wait()
}

// Stop cancels the job loops and waits for Start to return
func (s *defaultScheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancelFunc, s.done
	s.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping update scheduler")
		cancel()
		<-done
	}
	return nil
}

func (s *defaultScheduler) loop(ctx context.Context, job Job) {
	interval := s.nextInterval(job.Interval)
	slog.Info("Scheduled component updates",
		"component", job.Name,
		"base_interval", job.Interval,
		"actual_interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.submit(ctx, job)

	for {
		select {
		case <-ticker.C:
			s.submit(ctx, job)

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(s.nextInterval(job.Interval))
		case <-ctx.Done():
			return
		}
	}
}

func (*defaultScheduler) submit(ctx context.Context, job Job) {
	started := time.Now()
	resp := job.Target.Submit(ctx, job.request(), func(snapshot status.Snapshot) {
		slog.Info("Scheduled update run finished",
			"component", job.Name,
			"status", snapshot.Status,
			"version", snapshot.Version,
			"duration", time.Since(started))
	})

	if !resp.Result.IsSuccess() {
		slog.Warn("Scheduled update not accepted",
			"component", job.Name,
			"result", resp.Result)
		return
	}

	slog.Debug("Scheduled update submitted",
		"component", job.Name,
		"result", resp.Result,
		"flags", resp.FlagsAfter.String())
}
