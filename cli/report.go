package cli

// This file contains the commands that render files from recorded data:
// validation reports, verification guides and cleanup scripts.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/perfgo/testkeeper/cleanup"
	"github.com/perfgo/testkeeper/model"
	"github.com/perfgo/testkeeper/report"
	"github.com/perfgo/testkeeper/state"
	"github.com/urfave/cli/v2"
)

func (a *App) report(ctx *cli.Context) error {
	input := ctx.String("input")
	output := ctx.String("output")

	results, err := readResults(input)
	if err != nil {
		return err
	}

	var format report.Format
	switch {
	case ctx.String("format") != "":
		format, err = report.ParseFormat(ctx.String("format"))
	case output != "-" && filepath.Ext(output) != "":
		format, err = report.ParseFormat(filepath.Ext(output))
	default:
		format = report.FormatMarkdown
	}
	if err != nil {
		return err
	}

	if output == "-" {
		out, err := report.Render(format, results)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(a.out, out)
		return err
	}

	if err := report.Write(format, results, output); err != nil {
		return err
	}

	s := report.Summarize(results)
	a.logger.Info().
		Str("path", output).
		Str("format", string(format)).
		Int("pages", s.Total).
		Int("failed", s.Failed).
		Msg("Report written")
	return nil
}

// readResults accepts a bare array of results or a document with a
// "results" field, such as the JSON report itself.
func readResults(path string) ([]model.ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var results []model.ValidationResult
		if err := json.Unmarshal(data, &results); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return results, nil
	}

	var doc struct {
		Results []model.ValidationResult `json:"results"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc.Results, nil
}

func (a *App) guide(ctx *cli.Context) error {
	output := ctx.String("output")
	if output == "" {
		output = a.cfg.GuidePath
	}

	g, err := state.Open(a.logger, a.cfg.StatePath, output)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	if output == "-" {
		_, err := fmt.Fprint(a.out, g.VerificationGuide(a.endpoints()))
		return err
	}
	if err := g.WriteVerificationGuide(a.endpoints()); err != nil {
		return err
	}
	a.logger.Info().Str("path", output).Msg("Verification guide written")
	return nil
}

func (a *App) script(ctx *cli.Context) error {
	output := ctx.String("output")

	g, err := state.Open(a.logger, a.cfg.StatePath, a.cfg.GuidePath)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	if output == "-" {
		_, err := fmt.Fprint(a.out, g.CleanupScript(a.endpoints()))
		return err
	}
	if err := g.WriteCleanupScript(output, a.endpoints()); err != nil {
		return err
	}
	a.logger.Info().Str("path", output).Msg("Cleanup script written")
	return nil
}

// endpoints resolves delete endpoints from the defaults and the configured
// overrides, the same table the cleanup command deletes through.
func (a *App) endpoints() state.EndpointFunc {
	endpoints := cleanup.ResolveEndpoints(a.cfg.EndpointOverrides())
	return func(c model.Category) (string, bool) {
		e, ok := endpoints[c]
		return e, ok
	}
}
