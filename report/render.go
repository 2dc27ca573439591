package report

// This file contains the Markdown, JSON and CSV renderings.

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/perfgo/testkeeper/model"
)

// Markdown renders a summary table, a per-module table and the failures.
func Markdown(results []model.ValidationResult) string {
	s := Summarize(results)

	var b strings.Builder
	b.WriteString("# Page Validation Report\n\n")
	fmt.Fprintf(&b, "- Total pages: %d\n", s.Total)
	fmt.Fprintf(&b, "- Passed: %d\n", s.Passed)
	fmt.Fprintf(&b, "- Failed: %d\n", s.Failed)
	fmt.Fprintf(&b, "- Pass rate: %.1f%%\n", s.PassRate)
	fmt.Fprintf(&b, "- Average load time: %.0f ms\n", s.AvgLoadTimeMs)

	if len(s.Modules) > 0 {
		b.WriteString("\n## Modules\n\n")
		b.WriteString("| Module | Pages | Passed | Failed | Pass rate | Avg load (ms) |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, m := range s.Modules {
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %.1f%% | %.0f |\n",
				m.Module, m.Total, m.Passed, m.Failed, m.PassRate, m.AvgLoadTimeMs)
		}
	}

	if len(results) > 0 {
		b.WriteString("\n## Pages\n\n")
		b.WriteString("| Status | Module | Page | Load (ms) | Create | Read | Update | Delete |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|\n")
		for _, r := range results {
			mark := "✓"
			if !IsPagePassed(r) {
				mark = "✗"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %s | %s | %s | %s |\n",
				mark, mdEscape(r.Module), mdEscape(r.Page), r.PageLoad.LoadTimeMs,
				operationCell(r.Operations.Create), operationCell(r.Operations.Read),
				operationCell(r.Operations.Update), operationCell(r.Operations.Delete))
		}
	}

	var failures []model.ValidationResult
	for _, r := range results {
		if !IsPagePassed(r) {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		b.WriteString("\n## Failures\n")
		for _, r := range failures {
			fmt.Fprintf(&b, "\n### %s\n\n", r.Page)
			if r.URL != "" {
				fmt.Fprintf(&b, "- URL: %s\n", r.URL)
			}
			for _, msg := range failureReasons(r) {
				fmt.Fprintf(&b, "- %s\n", msg)
			}
		}
	}

	return b.String()
}

func failureReasons(r model.ValidationResult) []string {
	var reasons []string
	if !r.PageLoad.Success {
		msg := "page load failed"
		if r.PageLoad.Error != "" {
			msg += ": " + r.PageLoad.Error
		}
		reasons = append(reasons, msg)
	}
	for _, op := range r.Operations.Configured() {
		if op.Result.Success {
			continue
		}
		msg := op.Name + " failed"
		if op.Result.Error != "" {
			msg += ": " + op.Result.Error
		}
		reasons = append(reasons, msg)
	}
	reasons = append(reasons, r.Errors...)
	return reasons
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// JSONReport is the document produced by JSON.
type JSONReport struct {
	Summary Summary                  `json:"summary"`
	Results []model.ValidationResult `json:"results"`
}

// JSON renders the summary and the raw results.
func JSON(results []model.ValidationResult) (string, error) {
	if results == nil {
		results = []model.ValidationResult{}
	}
	data, err := json.MarshalIndent(JSONReport{Summary: Summarize(results), Results: results}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data) + "\n", nil
}

var csvHeader = []string{"page", "module", "url", "status", "load_success", "load_time_ms", "create", "read", "update", "delete", "errors"}

// CSV renders one row per page.
func CSV(results []model.ValidationResult) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, r := range results {
		row := []string{
			r.Page,
			r.Module,
			r.URL,
			status(r),
			strconv.FormatBool(r.PageLoad.Success),
			strconv.FormatInt(r.PageLoad.LoadTimeMs, 10),
			operationCell(r.Operations.Create),
			operationCell(r.Operations.Read),
			operationCell(r.Operations.Update),
			operationCell(r.Operations.Delete),
			strings.Join(r.Errors, "; "),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write csv: %w", err)
	}
	return b.String(), nil
}
