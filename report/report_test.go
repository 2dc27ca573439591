package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/perfgo/testkeeper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok() *model.OperationResult     { return &model.OperationResult{Success: true} }
func failed() *model.OperationResult { return &model.OperationResult{Success: false, Error: "toast not shown"} }

func TestIsPagePassed(t *testing.T) {
	tests := []struct {
		name   string
		result model.ValidationResult
		want   bool
	}{
		{
			name: "create and read configured and ok",
			result: model.ValidationResult{
				PageLoad:   model.PageLoad{Success: true},
				Operations: model.Operations{Create: ok(), Read: ok()},
			},
			want: true,
		},
		{
			name: "create failed",
			result: model.ValidationResult{
				PageLoad:   model.PageLoad{Success: true},
				Operations: model.Operations{Create: failed(), Read: ok()},
			},
			want: false,
		},
		{
			name:   "no operations, load ok",
			result: model.ValidationResult{PageLoad: model.PageLoad{Success: true}},
			want:   true,
		},
		{
			name:   "no operations, load failed",
			result: model.ValidationResult{PageLoad: model.PageLoad{Success: false}},
			want:   false,
		},
		{
			name: "collected errors",
			result: model.ValidationResult{
				PageLoad: model.PageLoad{Success: true},
				Errors:   []string{"console: TypeError"},
			},
			want: false,
		},
		{
			name: "delete failed",
			result: model.ValidationResult{
				PageLoad:   model.PageLoad{Success: true},
				Operations: model.Operations{Create: ok(), Read: ok(), Update: ok(), Delete: failed()},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPagePassed(tt.result))
		})
	}
}

func sampleResults() []model.ValidationResult {
	return []model.ValidationResult{
		{Page: "Datasources", Module: "integration", URL: "http://gov.local/ds", PageLoad: model.PageLoad{Success: true, LoadTimeMs: 100}, Operations: model.Operations{Create: ok(), Read: ok()}},
		{Page: "Sync Jobs", Module: "integration", PageLoad: model.PageLoad{Success: true, LoadTimeMs: 300}, Operations: model.Operations{Create: failed()}},
		{Page: "Users", Module: "system", PageLoad: model.PageLoad{Success: true, LoadTimeMs: 200}},
		{Page: "Audit|Log", Module: "system", PageLoad: model.PageLoad{Success: false, LoadTimeMs: 0, Error: "timeout"}},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResults())

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 2, s.Failed)
	assert.InDelta(t, 50.0, s.PassRate, 0.001)
	assert.InDelta(t, 150.0, s.AvgLoadTimeMs, 0.001)

	require.Len(t, s.Modules, 2)
	assert.Equal(t, ModuleSummary{Module: "integration", Total: 2, Passed: 1, Failed: 1, PassRate: 50, AvgLoadTimeMs: 200}, s.Modules[0])
	assert.Equal(t, ModuleSummary{Module: "system", Total: 2, Passed: 1, Failed: 1, PassRate: 50, AvgLoadTimeMs: 100}, s.Modules[1])
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.PassRate)
	assert.Zero(t, s.AvgLoadTimeMs)
	assert.Empty(t, s.Modules)
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleResults())

	assert.Contains(t, md, "- Pass rate: 50.0%")
	assert.Contains(t, md, "| integration | 2 | 1 | 1 | 50.0% | 200 |")
	assert.Contains(t, md, "| ✓ | integration | Datasources | 100 | ok | ok | - | - |")
	assert.Contains(t, md, `| ✗ | system | Audit\|Log | 0 | - | - | - | - |`)
	assert.Contains(t, md, "### Sync Jobs\n\n- create failed: toast not shown")
	assert.Contains(t, md, "- page load failed: timeout")
	assert.NotContains(t, md, "### Users")
}

func TestJSON(t *testing.T) {
	out, err := JSON(sampleResults())
	require.NoError(t, err)

	var doc JSONReport
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 4, doc.Summary.Total)
	require.Len(t, doc.Results, 4)
	assert.Nil(t, doc.Results[2].Operations.Create)

	empty, err := JSON(nil)
	require.NoError(t, err)
	assert.Contains(t, empty, `"results": []`)
	assert.Contains(t, empty, `"modules": []`)
}

func TestCSV(t *testing.T) {
	out, err := CSV(sampleResults())
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"Datasources", "integration", "http://gov.local/ds", "passed", "true", "100", "ok", "ok", "-", "-", ""}, rows[1])
	assert.Equal(t, "failed", rows[2][3])
	assert.Equal(t, "Audit|Log", rows[4][0])
}

func TestHTML(t *testing.T) {
	results := sampleResults()
	results = append(results, model.ValidationResult{Page: "<script>alert(1)</script>", Module: "system", PageLoad: model.PageLoad{Success: true}})

	out, err := HTML(results)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, `data-filter="failed"`)
	assert.Contains(t, out, `data-status="passed"`)
	assert.Contains(t, out, `<li>create failed: toast not shown</li>`)
	assert.Contains(t, out, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.Equal(t, 5, strings.Count(out, "<tr class="))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"md": FormatMarkdown, "Markdown": FormatMarkdown, ".json": FormatJSON, "csv": FormatCSV, "HTM": FormatHTML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	for _, format := range Formats {
		path := filepath.Join(dir, "out", "report."+string(format))
		require.NoError(t, Write(format, sampleResults(), path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		want, err := Render(format, sampleResults())
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}
