package cli

// This file contains the view command for displaying the resources of a
// previous test run.

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/perfgo/testkeeper/history"
	"github.com/urfave/cli/v2"
)

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

// parseViewArgs returns the ID or index argument, defaulting to the last
// run. A leading "--" is ignored; anything but a negative index starting
// with "-" is rejected as an unknown flag.
func parseViewArgs(in []string) (string, error) {
	in = removeFirstDashDash(in)
	if len(in) == 0 {
		return "0", nil
	}
	if len(in) > 1 {
		return "", fmt.Errorf("expected at most one argument, got %d", len(in))
	}

	arg := in[0]
	if len(arg) > 1 && arg[0] == '-' {
		if _, err := strconv.ParseInt(arg, 10, 64); err != nil {
			return "", fmt.Errorf("unknown flag: %s", arg)
		}
	}
	return arg, nil
}

func (a *App) view(ctx *cli.Context) error {
	arg, err := parseViewArgs(ctx.Args().Slice())
	if err != nil {
		return err
	}

	historyEntries, err := history.LoadEntries(a.logger, filepath.Dir(a.cfg.StatePath))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	targetEntry, err := history.Find(historyEntries, arg)
	if err != nil {
		return err
	}

	return displayHistoryEntry(a.out, targetEntry)
}

func displayHistoryEntry(w io.Writer, entry *history.Entry) error {
	info := entry.State.TestInfo

	// Print header
	fmt.Fprintf(w, "=== Test Run: %s ===\n", shortID(info.TestID))
	if info.TestName != "" {
		fmt.Fprintf(w, "Test: %s\n", info.TestName)
	}
	fmt.Fprintf(w, "Time: %s\n", info.StartTime.Format("2006-01-02 15:04:05"))
	if info.EndTime != nil {
		fmt.Fprintf(w, "Duration: %s\n", info.Elapsed())
	} else {
		fmt.Fprintln(w, "Duration: not completed")
	}
	if info.BaseURL != "" {
		fmt.Fprintf(w, "Target: %s\n", info.BaseURL)
	}
	if info.Git != nil && info.Git.Commit != "" {
		fmt.Fprintf(w, "Git Commit: %s", shortID(info.Git.Commit))
		if info.Git.Branch != "" {
			fmt.Fprintf(w, " (%s)", info.Git.Branch)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "State: %s\n\n", entry.FullPath)

	resources := entry.State.Entries()
	if len(resources) == 0 {
		fmt.Fprintln(w, "No resources recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCOLLECTION\tKEY\tID\tNAME\tCREATED")
	for _, r := range resources {
		base := r.Resource.Base()
		status := "pending"
		if base.Cleaned {
			status = "cleaned"
		}
		id := base.ID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			status, r.Collection, r.Key, id, base.Name, base.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if pending := len(entry.Pending()); pending > 0 {
		fmt.Fprintf(w, "\n%d resources pending, clean up with: %s --state %s cleanup\n", pending, AppName, entry.FullPath)
	}
	return nil
}
