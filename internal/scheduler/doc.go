// Package scheduler submits periodic background update runs.
//
// Every component with a schedule gets its own loop. The loop submits once on
// start and then again after every interval, with a random jitter so that a
// fleet of hosts started together does not hit the catalog in lockstep.
//
// A tick that lands while a run is in flight simply joins it; the coordinator
// decides whether the scheduled flags can still be honoured. The scheduler
// never waits for a run, so a slow download cannot delay the next tick of
// another component.
//
// # Usage Example
//
//	jobs, err := scheduler.JobsFromConfig(cfg, registry)
//	if err != nil {
//	    return err
//	}
//
//	sched := scheduler.New(jobs)
//	go func() {
//	    if err := sched.Start(ctx); err != nil {
//	        slog.Error("Scheduler failed", "error", err)
//	    }
//	}()
//	defer sched.Stop()
package scheduler
