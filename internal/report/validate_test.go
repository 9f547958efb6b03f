package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leynos/ghillie/internal/evidence"
	"github.com/leynos/ghillie/internal/report"
	"github.com/leynos/ghillie/internal/status"
	"github.com/leynos/ghillie/internal/types"
)

func bundleWithCommits(n int) *evidence.Bundle {
	bundle := &evidence.Bundle{Repository: &types.Repository{Owner: "a", Name: "b"}}
	for i := 0; i < n; i++ {
		bundle.Commits = append(bundle.Commits, evidence.CommitEvidence{SHA: "c"})
	}
	return bundle
}

func TestValidateAcceptsSaneResult(t *testing.T) {
	issues := report.Validate(bundleWithCommits(2), &status.Result{
		Summary:    "Two commits landed.",
		Highlights: []string{"one"},
	})
	assert.Empty(t, issues)
}

func TestValidateFlagsEmptySummary(t *testing.T) {
	issues := report.Validate(bundleWithCommits(1), &status.Result{Summary: "   "})
	assert.Equal(t, []string{report.IssueEmptySummary}, issues)
}

func TestValidateFlagsTruncatedSummary(t *testing.T) {
	issues := report.Validate(bundleWithCommits(1), &status.Result{Summary: "It was going well and..."})
	assert.Contains(t, issues, report.IssueTruncatedSummary)

	issues = report.Validate(bundleWithCommits(1), &status.Result{Summary: "It was going well and…  "})
	assert.Contains(t, issues, report.IssueTruncatedSummary)
}

func TestValidateFlagsImplausibleHighlights(t *testing.T) {
	highlights := make([]string, 6)
	for i := range highlights {
		highlights[i] = "h"
	}
	issues := report.Validate(bundleWithCommits(1), &status.Result{
		Summary:    "Fine.",
		Highlights: highlights,
	})
	assert.Equal(t, []string{report.IssueImplausibleHighlights}, issues)

	// An empty bundle still uses a floor of one event.
	issues = report.Validate(bundleWithCommits(0), &status.Result{
		Summary:    "Fine.",
		Highlights: highlights[:5],
	})
	assert.Empty(t, issues)
}

func TestRenderMarkdownSections(t *testing.T) {
	rep := &types.Report{
		Model: status.MockName,
		MachineSummary: types.MachineSummary{
			Status:     types.StatusAtRisk,
			Summary:    "Bugs outpaced features.",
			Highlights: []string{"Shipped exporter"},
			Risks:      []string{"3 bug issues remain open"},
			NextSteps:  []string{"Triage 3 open issues"},
		},
	}
	md := report.RenderMarkdown("acme/widgets", rep)

	assert.Contains(t, md, "# Status report: acme/widgets")
	assert.Contains(t, md, "**Status:** At risk")
	assert.Contains(t, md, "## Highlights")
	assert.Contains(t, md, "- Shipped exporter")
	assert.Contains(t, md, "## Risks")
	assert.Contains(t, md, "## Next steps")
}
