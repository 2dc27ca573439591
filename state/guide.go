package state

// This file contains the verification guide: a Markdown document that
// lets a human check by hand what a test run left on the platform.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/perfgo/testkeeper/model"
)

type collectionGuide struct {
	collection string
	title      string
	category   model.Category
	steps      []string
}

var collectionGuides = []collectionGuide{
	{
		collection: model.CollectionUsers,
		title:      "Users",
		category:   model.CategoryUser,
		steps: []string{
			"Open System Management > Users",
			"Search for each username listed below",
			"Check role and status match the recorded values",
		},
	},
	{
		collection: model.CollectionDatasources,
		title:      "Datasources",
		category:   model.CategoryDatasource,
		steps: []string{
			"Open Data Integration > Datasources",
			"Find each datasource by name",
			"Run a connection test and check type, host and database",
		},
	},
	{
		collection: model.CollectionDatasets,
		title:      "Datasets",
		category:   model.CategoryDataset,
		steps: []string{
			"Open Data Assets > Datasets",
			"Find each dataset by name",
			"Check it references the recorded datasource and table",
		},
	},
	{
		collection: model.CollectionWorkflows,
		title:      "Workflows",
		category:   model.CategoryWorkflow,
		steps: []string{
			"Open Development > Workflows",
			"Find each workflow by name",
			"Check schedule and step count",
		},
	},
	{
		collection: model.CollectionModels,
		title:      "Models",
		category:   model.CategoryModel,
		steps: []string{
			"Open Model Management > Models",
			"Find each model by name",
			"Check framework and version",
		},
	},
	{
		collection: model.CollectionQualityRules,
		title:      "Quality Rules",
		category:   model.CategoryQualityRule,
		steps: []string{
			"Open Data Quality > Rules",
			"Find each rule by name",
			"Check rule type and target dataset",
		},
	},
}

// VerificationGuide renders the Markdown verification guide for the
// current snapshot. API checks use the endpoints resolved by endpoint.
func (g *Gateway) VerificationGuide(endpoint EndpointFunc) string {
	s := g.state
	info := s.TestInfo
	baseURL := info.BaseURL
	if baseURL == "" {
		baseURL = "$BASE_URL"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Test Data Verification Guide\n\n")
	fmt.Fprintf(&b, "- Test ID: `%s`\n", info.TestID)
	fmt.Fprintf(&b, "- Test name: %s\n", info.TestName)
	fmt.Fprintf(&b, "- Started: %s\n", info.StartTime.Format(time.RFC3339))
	if info.EndTime != nil {
		fmt.Fprintf(&b, "- Finished: %s (%s)\n", info.EndTime.Format(time.RFC3339), info.Elapsed())
	}
	if info.BaseURL != "" {
		fmt.Fprintf(&b, "- Platform: %s\n", info.BaseURL)
	}
	if info.Git != nil && info.Git.Commit != "" {
		fmt.Fprintf(&b, "- Commit: %s (%s)\n", shortCommit(info.Git.Commit), info.Git.Branch)
	}

	counts := s.Counts()
	entries := s.Entries()

	b.WriteString("\n## Summary\n\n")
	b.WriteString("| Category | Records |\n|---|---|\n")
	total := 0
	for _, cg := range collectionGuides {
		fmt.Fprintf(&b, "| %s | %d |\n", cg.title, counts[cg.collection])
		total += counts[cg.collection]
	}
	fmt.Fprintf(&b, "| **Total** | **%d** |\n", total)

	for _, cg := range collectionGuides {
		if counts[cg.collection] == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n## %s\n\n", cg.title)
		for i, step := range cg.steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}

		b.WriteString("\n| Key | ID | Name | Created | Cleaned |\n|---|---|---|---|---|\n")
		for _, e := range entries {
			if e.Collection != cg.collection {
				continue
			}
			base := e.Resource.Base()
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %t |\n",
				e.Key, orDash(base.ID), orDash(base.Name), base.CreatedAt.Format(time.RFC3339), base.Cleaned)
		}

		path, ok := endpoint(cg.category)
		if !ok {
			continue
		}
		b.WriteString("\nAPI check:\n\n```bash\n")
		fmt.Fprintf(&b, "curl -H \"Authorization: Bearer $API_TOKEN\" %s%s\n", baseURL, path)
		b.WriteString("```\n")
	}

	return b.String()
}

// WriteVerificationGuide writes the guide to the configured guide path.
func (g *Gateway) WriteVerificationGuide(endpoint EndpointFunc) error {
	if g.guidePath == "" {
		return fmt.Errorf("no guide path configured")
	}
	if err := os.MkdirAll(filepath.Dir(g.guidePath), 0755); err != nil {
		return fmt.Errorf("failed to create guide directory: %w", err)
	}
	if err := os.WriteFile(g.guidePath, []byte(g.VerificationGuide(endpoint)), 0644); err != nil {
		return fmt.Errorf("failed to write verification guide: %w", err)
	}
	g.logger.Info().Str("path", g.guidePath).Msg("Wrote verification guide")
	return nil
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
