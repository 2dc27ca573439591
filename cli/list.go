package cli

// This file contains the list command for displaying previous test runs.

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/perfgo/testkeeper/history"
	"github.com/urfave/cli/v2"
)

func (a *App) historyDir(ctx *cli.Context) string {
	if dir := ctx.String("dir"); dir != "" {
		return dir
	}
	return filepath.Dir(a.cfg.StatePath)
}

func (a *App) list(ctx *cli.Context) error {
	limit := ctx.Int("limit")

	historyEntries, err := history.LoadEntries(a.logger, a.historyDir(ctx))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if len(historyEntries) == 0 {
		fmt.Fprintln(a.out, "No history entries found")
		return nil
	}

	printEntries(a.out, historyEntries, limit)
	return nil
}

// printEntries writes one block per run; entries are expected newest first.
func printEntries(w io.Writer, entries []history.Entry, limit int) {
	displayRuns := entries
	if limit > 0 && limit < len(displayRuns) {
		displayRuns = displayRuns[:limit]
	}

	fmt.Fprintf(w, "\n=== History (%d total) ===\n\n", len(entries))

	for _, entry := range displayRuns {
		info := entry.State.TestInfo
		timestamp := info.StartTime.Format("2006-01-02 15:04:05")

		duration := "running"
		if info.EndTime != nil {
			duration = info.Elapsed().String()
		}

		pending := len(entry.Pending())
		status := "✓"
		if pending > 0 {
			status = "✗"
		}

		fmt.Fprintf(w, "%s  %s  [%s]  pending=%d  id=%s\n", status, timestamp, duration, pending, shortID(info.TestID))
		if info.TestName != "" {
			fmt.Fprintf(w, "   Test: %s\n", info.TestName)
		}
		if info.BaseURL != "" {
			fmt.Fprintf(w, "   Target: %s\n", info.BaseURL)
		}
		if counts := formatCounts(entry.State.Counts()); counts != "" {
			fmt.Fprintf(w, "   Resources: %s\n", counts)
		}
		if info.Git != nil && info.Git.Commit != "" {
			fmt.Fprintf(w, "   Commit: %s", shortID(info.Git.Commit))
			if info.Git.Branch != "" {
				fmt.Fprintf(w, " (%s)", info.Git.Branch)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "   %s\n", entry.FullPath)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "View run: %s view <ID>\n", AppName)
	fmt.Fprintf(w, "Clean up leftovers: %s --state <path> cleanup\n", AppName)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatCounts renders the non-empty collections as name=count, sorted by
// name.
func formatCounts(counts map[string]int) string {
	var parts []string
	for name, n := range counts {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", name, n))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
