package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/perfgo/testkeeper/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "testkeeper"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
	out    io.Writer
	cfg    *config.Config
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	return newApp(logger, os.Stdout)
}

func newApp(logger zerolog.Logger, out io.Writer) *App {
	app := &App{
		logger: logger,
		out:    out,
	}
	app.cli = &cli.App{
		Name:      AppName,
		Usage:     "Track, report and clean up the test data of end-to-end runs",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path of the configuration file (default: ./testkeeper.yaml if present)",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Base URL of the platform under test (overrides config and TESTKEEPER_BASE_URL)",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "API bearer token (overrides config and TESTKEEPER_API_TOKEN / API_TOKEN)",
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Path of the run state file (default: " + config.DefaultStatePath + ")",
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return app.loadConfig(ctx)
		},
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "cleanup",
		Usage:  "Delete the resources recorded in a run state file",
		Action: app.cleanup,
		Flags: []cli.Flag{
			categoryFlag(),
			dryRunFlag(),
			&cli.BoolFlag{
				Name:  "orphans",
				Usage: "Also delete prefixed test data that is not in the state file",
			},
			&cli.BoolFlag{
				Name:  "guide",
				Usage: "Write the verification guide after cleanup",
			},
			metricsFileFlag(),
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "orphans",
		Usage:  "Find and delete test data left behind by earlier runs",
		Action: app.orphans,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Resource kind to scan (can be specified multiple times, default: all)",
			},
			&cli.StringSliceFlag{
				Name:  "prefix",
				Usage: "Test data name prefix (can be specified multiple times, overrides config)",
			},
			&cli.BoolFlag{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "Only list the orphans, do not delete them",
			},
			dryRunFlag(),
			metricsFileFlag(),
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "report",
		Usage:  "Render page validation results",
		Action: app.report,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "JSON file with the validation results",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: markdown, json, csv or html (default: from --output extension, else markdown)",
			},
			outputFlag("Output file, - for stdout", "-"),
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "guide",
		Usage:  "Write the manual verification guide for a run state file",
		Action: app.guide,
		Flags: []cli.Flag{
			outputFlag("Output file, - for stdout (default: guide path from config)", ""),
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "script",
		Usage:  "Write a shell script that deletes the resources of a run state file",
		Action: app.script,
		Flags: []cli.Flag{
			outputFlag("Output file, - for stdout", "-"),
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous test runs",
		Action: app.list,
		Flags: []cli.Flag{
			dirFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View the resources of a previous test run",
		ArgsUsage:       "[ID|INDEX]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View the resources of a previous test run. Runs are looked up
in the directory of the state file.

Arguments:
  0           View last test run (default)
  -1          View 2nd last test run
  -2          View 3rd last test run
  <id>        View test run matching the test ID prefix

Examples:
  testkeeper view           # View last test run
  testkeeper view -1        # View 2nd last test run
  testkeeper view 3f2a      # View test run with ID starting with 3f2a`,
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

// loadConfig resolves the configuration; global flags take precedence over
// the file and the environment.
func (a *App) loadConfig(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}

	if ctx.IsSet("base-url") {
		cfg.BaseURL = ctx.String("base-url")
	}
	if ctx.IsSet("token") {
		cfg.APIToken = ctx.String("token")
	}
	if ctx.IsSet("state") {
		cfg.StatePath = ctx.String("state")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger.Debug().
		Str("base_url", cfg.BaseURL).
		Str("state", cfg.StatePath).
		Bool("token", cfg.APIToken != "").
		Msg("Loaded configuration")
	return nil
}
