package report

// Package report renders page validation results as Markdown, JSON, CSV or
// a self-contained HTML document. Rendering is pure; Write is the only
// function that touches the filesystem.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/perfgo/testkeeper/model"
	"github.com/samber/lo"
)

// Format is an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatHTML     Format = "html"
)

// Formats lists the supported formats.
var Formats = []Format{FormatMarkdown, FormatJSON, FormatCSV, FormatHTML}

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown report format %q (supported: markdown, json, csv, html)", s)
}

// IsPagePassed reports whether the page loaded, collected no errors and
// every configured operation succeeded. Pages without configured
// operations pass on a successful load alone.
func IsPagePassed(r model.ValidationResult) bool {
	if !r.PageLoad.Success || len(r.Errors) > 0 {
		return false
	}
	return lo.EveryBy(r.Operations.Configured(), func(op model.NamedOperation) bool {
		return op.Result.Success
	})
}

// Summary aggregates a set of results.
type Summary struct {
	Total         int             `json:"total"`
	Passed        int             `json:"passed"`
	Failed        int             `json:"failed"`
	PassRate      float64         `json:"passRate"`
	AvgLoadTimeMs float64         `json:"avgLoadTimeMs"`
	Modules       []ModuleSummary `json:"modules"`
}

// ModuleSummary aggregates the results of one module.
type ModuleSummary struct {
	Module        string  `json:"module"`
	Total         int     `json:"total"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	PassRate      float64 `json:"passRate"`
	AvgLoadTimeMs float64 `json:"avgLoadTimeMs"`
}

// Summarize computes overall and per-module statistics. Pass rates are
// percentages; modules are sorted by name.
func Summarize(results []model.ValidationResult) Summary {
	passed := lo.CountBy(results, IsPagePassed)
	s := Summary{
		Total:         len(results),
		Passed:        passed,
		Failed:        len(results) - passed,
		PassRate:      percent(passed, len(results)),
		AvgLoadTimeMs: avgLoadTime(results),
		Modules:       []ModuleSummary{},
	}

	groups := lo.GroupBy(results, func(r model.ValidationResult) string {
		if r.Module == "" {
			return "unknown"
		}
		return r.Module
	})
	for module, rs := range groups {
		p := lo.CountBy(rs, IsPagePassed)
		s.Modules = append(s.Modules, ModuleSummary{
			Module:        module,
			Total:         len(rs),
			Passed:        p,
			Failed:        len(rs) - p,
			PassRate:      percent(p, len(rs)),
			AvgLoadTimeMs: avgLoadTime(rs),
		})
	}
	sort.Slice(s.Modules, func(i, j int) bool {
		return s.Modules[i].Module < s.Modules[j].Module
	})

	return s
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

func avgLoadTime(results []model.ValidationResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := lo.SumBy(results, func(r model.ValidationResult) int64 { return r.PageLoad.LoadTimeMs })
	return float64(sum) / float64(len(results))
}

// Render returns the results in the given format.
func Render(format Format, results []model.ValidationResult) (string, error) {
	switch format {
	case FormatMarkdown:
		return Markdown(results), nil
	case FormatJSON:
		return JSON(results)
	case FormatCSV:
		return CSV(results)
	case FormatHTML:
		return HTML(results)
	}
	return "", fmt.Errorf("unknown report format %q", format)
}

// Write renders the results and writes them to path.
func Write(format Format, results []model.ValidationResult, path string) error {
	out, err := Render(format, results)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func status(r model.ValidationResult) string {
	if IsPagePassed(r) {
		return "passed"
	}
	return "failed"
}

// operationCell renders an operation result for tables: "-" when not
// configured.
func operationCell(op *model.OperationResult) string {
	switch {
	case op == nil:
		return "-"
	case op.Success:
		return "ok"
	default:
		return "failed"
	}
}
