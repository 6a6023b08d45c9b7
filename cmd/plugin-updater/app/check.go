package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	updaterapp "github.com/stacklok/plugin-updater/internal/app"
	"github.com/stacklok/plugin-updater/internal/status"
	"github.com/stacklok/plugin-updater/internal/update"
)

// errRunFailed is returned when at least one component ended with a FAIL_* status
var errRunFailed = errors.New("one or more update runs failed")

// checkResult is the outcome of one component in a check
type checkResult struct {
	Component string            `json:"component"`
	Result    update.TryOutcome `json:"result"`
	Snapshot  *status.Snapshot  `json:"snapshot,omitempty"`
	Flags     update.PhaseFlags `json:"flags"`
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one update check for the configured components and exit",
		Long: `Run a lookup and version check for every configured component, or only the ones
named with --component, wait for the runs to finish and print their outcome.
With --download newer releases are also staged in the update folder; with
--lookup-only the running version is not compared.`,
		RunE: runCheck,
	}
	cmd.Flags().StringSlice("component", nil, "Components to check (default all)")
	cmd.Flags().Bool("download", false, "Download and stage newer releases")
	cmd.Flags().Bool("lookup-only", false, "Only look up the latest release")
	cmd.Flags().String("format", "text", "Output format (text|json)")
	cmd.Flags().Duration("timeout", 15*time.Minute, "Maximum time to wait for the runs")
	cmd.MarkFlagsMutuallyExclusive("download", "lookup-only")
	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	names, err := cmd.Flags().GetStringSlice("component")
	if err != nil {
		return err
	}
	download, err := cmd.Flags().GetBool("download")
	if err != nil {
		return err
	}
	lookupOnly, err := cmd.Flags().GetBool("lookup-only")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q", format)
	}

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	updater, err := updaterapp.NewUpdaterApp(ctx,
		updaterapp.WithConfig(cfg),
		updaterapp.WithConfigPath(configPath),
	)
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}
	registry := updater.Registry()
	defer func() { _ = registry.CloseAll(context.WithoutCancel(ctx)) }()

	flags := update.PhaseFlags{Lookup: true, Check: !lookupOnly, Download: download}
	results, err := runChecks(ctx, registry, names, flags)
	if err != nil {
		return err
	}

	if err := writeResults(cmd.OutOrStdout(), results, format); err != nil {
		return err
	}

	for _, r := range results {
		if r.Snapshot == nil || r.Snapshot.Status.IsFailure() {
			return errRunFailed
		}
	}
	return nil
}

// runChecks submits a run with flags to every named component, or to all of
// them, and waits for each run to finish
func runChecks(
	ctx context.Context, registry *update.Registry, names []string, flags update.PhaseFlags,
) ([]checkResult, error) {
	if len(names) == 0 {
		names = registry.Names()
	}

	coordinators := make([]*update.Coordinator, len(names))
	for i, name := range names {
		c, ok := registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown component %q", name)
		}
		coordinators[i] = c
	}

	results := make([]checkResult, len(coordinators))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range coordinators {
		g.Go(func() error {
			result, err := checkOne(gctx, c, flags)
			results[i] = result
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkOne(ctx context.Context, c *update.Coordinator, flags update.PhaseFlags) (checkResult, error) {
	finished := make(chan status.Snapshot, 1)
	resp := c.Submit(ctx, update.Request{
		ResourceID: c.ResourceID(),
		Lookup:     flags.Lookup,
		Check:      flags.Check,
		Download:   flags.Download,
	}, func(s status.Snapshot) { finished <- s })

	result := checkResult{
		Component: c.Name(),
		Result:    resp.Result,
		Flags:     resp.FlagsAfter,
	}
	if !resp.Result.IsSuccess() {
		return result, nil
	}

	select {
	case s := <-finished:
		result.Snapshot = &s
		return result, nil
	case <-ctx.Done():
		return result, fmt.Errorf("component %s: %w", c.Name(), ctx.Err())
	}
}

func writeResults(w io.Writer, results []checkResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "COMPONENT\tSTATUS\tVERSION\tRELEASE"); err != nil {
		return err
	}
	for _, r := range results {
		code, version, name := string(r.Result), "-", "-"
		if r.Snapshot != nil {
			code = string(r.Snapshot.Status)
			if r.Snapshot.Version != "" {
				version = r.Snapshot.Version
			}
			if r.Snapshot.Name != "" {
				name = r.Snapshot.Name
			}
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Component, code, version, name); err != nil {
			return err
		}
	}
	return tw.Flush()
}
