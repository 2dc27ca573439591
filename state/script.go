package state

// This file contains the cleanup script generator. The script is an
// alternative, human-inspectable way to delete what a run created.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/perfgo/testkeeper/model"
)

// EndpointFunc resolves the delete endpoint of a category.
type EndpointFunc func(model.Category) (string, bool)

// CleanupScript renders a bash script with one curl DELETE per uncleaned
// record that has a known id. The script refuses to run without API_TOKEN.
func (g *Gateway) CleanupScript(endpoint EndpointFunc) string {
	info := g.state.TestInfo
	baseURL := info.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\n")
	fmt.Fprintf(&b, "# Cleanup script for test run %s (%s)\n", commentText(info.TestID), commentText(info.TestName))
	b.WriteString("set -euo pipefail\n\n")
	b.WriteString("if [ -z \"${API_TOKEN:-}\" ]; then\n")
	b.WriteString("  echo \"API_TOKEN is not set\" >&2\n")
	b.WriteString("  exit 1\n")
	b.WriteString("fi\n\n")
	// The default is assigned quoted and only ever expanded as a variable.
	fmt.Fprintf(&b, "DEFAULT_BASE_URL=%s\n", shellescape.Quote(baseURL))
	b.WriteString("BASE_URL=\"${BASE_URL:-$DEFAULT_BASE_URL}\"\n\n")

	count := 0
	for _, e := range g.state.Entries() {
		base := e.Resource.Base()
		if base.ID == "" || base.Cleaned {
			continue
		}
		path, ok := endpoint(e.Resource.Category())
		if !ok {
			fmt.Fprintf(&b, "# skipped %s/%s: no delete endpoint for %s\n",
				e.Collection, commentText(e.Key), commentText(string(e.Resource.Category())))
			continue
		}

		args := []string{
			"curl", "-sS", "-f", "-X", "DELETE",
			"-H", "Authorization: Bearer ${API_TOKEN}",
		}
		parts := make([]string, 0, len(args)+1)
		for _, arg := range args {
			if strings.Contains(arg, "${API_TOKEN}") {
				// Expanded by the shell at run time.
				parts = append(parts, `"`+arg+`"`)
				continue
			}
			parts = append(parts, shellescape.Quote(arg))
		}
		parts = append(parts, `"${BASE_URL}"`+shellescape.Quote(path+"/"+base.ID))

		fmt.Fprintf(&b, "echo %s\n", shellescape.Quote(fmt.Sprintf("Deleting %s %s (%s)", e.Resource.Category(), base.ID, base.Name)))
		b.WriteString(strings.Join(parts, " "))
		b.WriteString(" || echo \"failed\" >&2\n")
		count++
	}

	fmt.Fprintf(&b, "\necho %s\n", shellescape.Quote(fmt.Sprintf("Processed %d resources", count)))
	return b.String()
}

// commentText keeps s on a single script line.
func commentText(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// WriteCleanupScript writes the cleanup script as an executable file.
func (g *Gateway) WriteCleanupScript(path string, endpoint EndpointFunc) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create script directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(g.CleanupScript(endpoint)), 0755); err != nil {
		return fmt.Errorf("failed to write cleanup script: %w", err)
	}
	g.logger.Info().Str("path", path).Msg("Wrote cleanup script")
	return nil
}
