package report

import (
	"strings"

	"github.com/leynos/ghillie/internal/evidence"
	"github.com/leynos/ghillie/internal/status"
)

// Validation issue codes.
const (
	IssueEmptySummary          = "empty_summary"
	IssueTruncatedSummary      = "truncated_summary"
	IssueImplausibleHighlights = "implausible_highlights"
)

// highlightFactor bounds plausible highlights relative to bundle size.
const highlightFactor = 5

// Validate checks a status result for sanity against its bundle. An
// empty issue list means the result is publishable as-is; issues are
// logged by the caller, not silently repaired.
func Validate(bundle *evidence.Bundle, result *status.Result) []string {
	var issues []string

	summary := strings.TrimSpace(result.Summary)
	if summary == "" {
		issues = append(issues, IssueEmptySummary)
	} else if strings.HasSuffix(summary, "...") || strings.HasSuffix(summary, "…") {
		issues = append(issues, IssueTruncatedSummary)
	}

	events := bundle.TotalEventCount()
	if events < 1 {
		events = 1
	}
	if len(result.Highlights) > highlightFactor*events {
		issues = append(issues, IssueImplausibleHighlights)
	}
	return issues
}
