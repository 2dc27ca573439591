package cli

// This file contains flag definitions shared between commands.

import (
	"github.com/urfave/cli/v2"
)

// categoryFlag returns the category filter for cleanup.
func categoryFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "category",
		Usage: "Category to clean up (can be specified multiple times, default: all tracked)",
	}
}

// dryRunFlag returns the flag that turns deletes into log lines.
func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Report what would be deleted without calling the API",
	}
}

// metricsFileFlag returns the flag for the Prometheus textfile output.
func metricsFileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "metrics-file",
		Usage: "Write cleanup counters in Prometheus text format to this file",
	}
}

func outputFlag(usage, value string) cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   usage,
		Value:   value,
	}
}

func dirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "dir",
		Usage: "Directory with run state files (default: directory of the state file)",
	}
}
