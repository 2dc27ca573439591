package report

// This file contains the HTML rendering: a single document with inline
// styles and a small script to filter rows by status.

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/perfgo/testkeeper/model"
)

type htmlRow struct {
	Status  string
	Result  model.ValidationResult
	Reasons []string
}

type htmlData struct {
	Summary Summary
	Rows    []htmlRow
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"op": operationCell,
	"pct": func(f float64) string {
		return fmt.Sprintf("%.1f%%", f)
	},
	"ms": func(f float64) string {
		return fmt.Sprintf("%.0f ms", f)
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Page Validation Report</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2em; }
th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; }
th { background: #f5f5f5; }
tr.passed td.status { color: #2e7d32; }
tr.failed td.status { color: #c62828; }
.filters button { margin-right: .5em; }
.filters button.active { font-weight: bold; }
ul.reasons { margin: 0; padding-left: 1.2em; }
</style>
</head>
<body>
<h1>Page Validation Report</h1>
<p>Total: {{.Summary.Total}} &middot; Passed: {{.Summary.Passed}} &middot; Failed: {{.Summary.Failed}} &middot; Pass rate: {{pct .Summary.PassRate}} &middot; Average load: {{ms .Summary.AvgLoadTimeMs}}</p>
<h2>Modules</h2>
<table>
<tr><th>Module</th><th>Pages</th><th>Passed</th><th>Failed</th><th>Pass rate</th><th>Avg load</th></tr>
{{- range .Summary.Modules}}
<tr><td>{{.Module}}</td><td>{{.Total}}</td><td>{{.Passed}}</td><td>{{.Failed}}</td><td>{{pct .PassRate}}</td><td>{{ms .AvgLoadTimeMs}}</td></tr>
{{- end}}
</table>
<h2>Pages</h2>
<div class="filters">
<button type="button" data-filter="all" class="active">All</button>
<button type="button" data-filter="passed">Passed</button>
<button type="button" data-filter="failed">Failed</button>
</div>
<table id="results">
<tr><th>Status</th><th>Module</th><th>Page</th><th>Load (ms)</th><th>Create</th><th>Read</th><th>Update</th><th>Delete</th><th>Details</th></tr>
{{- range .Rows}}
<tr class="{{.Status}}" data-status="{{.Status}}">
<td class="status">{{.Status}}</td><td>{{.Result.Module}}</td><td>{{if .Result.URL}}<a href="{{.Result.URL}}">{{.Result.Page}}</a>{{else}}{{.Result.Page}}{{end}}</td><td>{{.Result.PageLoad.LoadTimeMs}}</td>
<td>{{op .Result.Operations.Create}}</td><td>{{op .Result.Operations.Read}}</td><td>{{op .Result.Operations.Update}}</td><td>{{op .Result.Operations.Delete}}</td>
<td>{{if .Reasons}}<ul class="reasons">{{range .Reasons}}<li>{{.}}</li>{{end}}</ul>{{end}}</td>
</tr>
{{- end}}
</table>
<script>
document.querySelectorAll('.filters button').forEach(function (btn) {
  btn.addEventListener('click', function () {
    var filter = btn.getAttribute('data-filter');
    document.querySelectorAll('.filters button').forEach(function (b) { b.classList.toggle('active', b === btn); });
    document.querySelectorAll('#results tr[data-status]').forEach(function (row) {
      row.style.display = (filter === 'all' || row.getAttribute('data-status') === filter) ? '' : 'none';
    });
  });
});
</script>
</body>
</html>
`))

// HTML renders a self-contained document with client-side filtering by
// pass/fail status.
func HTML(results []model.ValidationResult) (string, error) {
	data := htmlData{Summary: Summarize(results)}
	for _, r := range results {
		row := htmlRow{Status: status(r), Result: r}
		if row.Status == "failed" {
			row.Reasons = failureReasons(r)
		}
		data.Rows = append(data.Rows, row)
	}

	var b strings.Builder
	if err := htmlTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render html report: %w", err)
	}
	return b.String(), nil
}
