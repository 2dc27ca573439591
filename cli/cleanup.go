package cli

// This file contains the cleanup and orphans commands.

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/perfgo/testkeeper/metrics"
	"github.com/perfgo/testkeeper/model"
	"github.com/perfgo/testkeeper/orphan"
	"github.com/perfgo/testkeeper/session"
	"github.com/perfgo/testkeeper/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
)

func (a *App) cleanup(ctx *cli.Context) error {
	dryRun := ctx.Bool("dry-run")
	withOrphans := ctx.Bool("orphans")
	categories := lo.Map(ctx.StringSlice("category"), func(c string, _ int) model.Category {
		return model.Category(c)
	})

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	// Keep the header of the run that wrote the state file
	opts := []session.Option{session.WithMetrics(m)}
	prev, err := state.ReadFile(a.cfg.StatePath)
	switch {
	case err == nil:
		opts = append(opts,
			session.WithTestID(prev.TestInfo.TestID),
			session.WithTestName(prev.TestInfo.TestName),
		)
		if !prev.TestInfo.StartTime.IsZero() {
			opts = append(opts, session.WithStartTime(prev.TestInfo.StartTime))
		}
		if prev.TestInfo.Git != nil {
			opts = append(opts, session.WithGitInfo(prev.TestInfo.Git))
		} else {
			opts = append(opts, a.gitOption()...)
		}
	case errors.Is(err, fs.ErrNotExist):
		if !withOrphans {
			fmt.Fprintf(a.out, "No state file found at %s, nothing to clean up\n", a.cfg.StatePath)
			return nil
		}
		opts = append(opts, a.gitOption()...)
	default:
		return fmt.Errorf("failed to load state: %w", err)
	}

	run, err := session.New(a.cfg, a.logger, opts...)
	if err != nil {
		return err
	}

	pending := run.Resume()
	if pending == 0 && !withOrphans {
		fmt.Fprintf(a.out, "No pending resources in %s\n", a.cfg.StatePath)
		return nil
	}

	result := run.Teardown(ctx.Context, session.TeardownOptions{
		DryRun:     dryRun,
		Orphans:    withOrphans,
		Categories: categories,
		Guide:      ctx.Bool("guide"),
	})
	a.printResult(result, dryRun)

	err = result.Err()
	if path := ctx.String("metrics-file"); path != "" {
		err = multierr.Append(err, writeMetrics(path, reg))
	}
	return err
}

func (a *App) orphans(ctx *cli.Context) error {
	dryRun := ctx.Bool("dry-run")
	if ctx.IsSet("prefix") {
		a.cfg.Prefixes = ctx.StringSlice("prefix")
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	run, err := session.New(a.cfg, a.logger, session.WithMetrics(m))
	if err != nil {
		return err
	}
	scanner := run.Scanner()

	kinds := ctx.StringSlice("kind")
	if len(kinds) == 0 {
		kinds = scanner.Kinds()
	}

	if ctx.Bool("list") {
		return a.listOrphans(ctx, scanner, kinds)
	}

	result := scanner.CleanupOrphaned(ctx.Context, orphan.Options{DryRun: dryRun, Kinds: kinds})
	a.printResult(result, dryRun)

	err = result.Err()
	if path := ctx.String("metrics-file"); path != "" {
		err = multierr.Append(err, writeMetrics(path, reg))
	}
	return err
}

func (a *App) listOrphans(ctx *cli.Context, scanner *orphan.Scanner, kinds []string) error {
	var errs error
	total := 0
	for _, kind := range kinds {
		items, err := scanner.FindOrphans(ctx.Context, kind)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		fmt.Fprintf(a.out, "=== %s (%d) ===\n", kind, len(items))
		for _, item := range items {
			fmt.Fprintf(a.out, "  %-12s %s\n", item.ID, item.Name)
		}
		total += len(items)
	}
	fmt.Fprintf(a.out, "\n%d orphaned resources (prefixes: %s)\n", total, strings.Join(a.cfg.Prefixes, ", "))
	return errs
}

func (a *App) printResult(result model.CleanupResult, dryRun bool) {
	verb := "Cleaned"
	if dryRun {
		verb = "Would clean"
	}
	status := "✓"
	if !result.Success {
		status = "✗"
	}
	fmt.Fprintf(a.out, "%s %s %d resources, %d failed\n", status, verb, result.Cleaned, result.Failed)
	for _, msg := range result.Errors {
		fmt.Fprintf(a.out, "   %s\n", msg)
	}
}

func writeMetrics(path string, reg *prometheus.Registry) error {
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
