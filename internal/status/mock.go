package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/leynos/ghillie/internal/evidence"
	"github.com/leynos/ghillie/internal/types"
)

// MockName is the model identifier recorded on mock-generated reports.
const MockName = "mock"

// Mock is a deterministic status model: the same bundle always yields
// the same result. It consumes no tokens.
type Mock struct{}

// NewMock returns the deterministic mock model.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return MockName }

func (m *Mock) LastMetrics() Metrics { return Metrics{} }

func (m *Mock) Generate(_ context.Context, bundle *evidence.Bundle) (*Result, error) {
	result := &Result{
		Status:     m.deriveStatus(bundle),
		Summary:    m.summarize(bundle),
		Highlights: m.highlights(bundle),
		Risks:      m.risks(bundle),
		NextSteps:  []string{},
	}
	result.NextSteps = m.nextSteps(bundle, result.Status)
	capLists(result)
	return result, nil
}

// deriveStatus applies the fixed priority: no activity, then carried
// risk from the latest report, then bug pressure, else on track.
func (m *Mock) deriveStatus(bundle *evidence.Bundle) types.ReportStatus {
	if bundle.TotalEventCount() == 0 {
		return types.StatusUnknown
	}
	if len(bundle.PreviousReports) > 0 {
		prev := bundle.PreviousReports[0]
		carried := prev.Status == types.StatusAtRisk || prev.Status == types.StatusBlocked
		if carried && len(prev.Risks) > 0 {
			return types.StatusAtRisk
		}
	}
	bugs, features := 0, 0
	if g, ok := bundle.Grouping(evidence.WorkBug); ok {
		bugs = g.Total()
	}
	if g, ok := bundle.Grouping(evidence.WorkFeature); ok {
		features = g.Total()
	}
	if bugs > 0 && features > 0 && bugs > features {
		return types.StatusAtRisk
	}
	return types.StatusOnTrack
}

func (m *Mock) summarize(bundle *evidence.Bundle) string {
	slug := bundle.Repository.Slug()
	if bundle.TotalEventCount() == 0 {
		return fmt.Sprintf("No activity captured for %s in this window.", slug)
	}
	parts := []string{
		plural(len(bundle.Commits), "commit"),
		plural(len(bundle.PullRequests), "pull request"),
		plural(len(bundle.Issues), "issue"),
		plural(len(bundle.DocChanges), "documentation change"),
	}
	return fmt.Sprintf("%s recorded %s in this window.", slug, joinList(parts))
}

func (m *Mock) highlights(bundle *evidence.Bundle) []string {
	highlights := []string{}
	if feature, ok := bundle.Grouping(evidence.WorkFeature); ok && feature.PullRequestCount > 0 {
		highlights = append(highlights,
			fmt.Sprintf("Delivered %s", plural(feature.PullRequestCount, "feature pull request")))
		for i, title := range feature.SampleTitles {
			if i == 2 {
				break
			}
			highlights = append(highlights, title)
		}
	}
	docActivity := len(bundle.DocChanges) > 0
	if _, ok := bundle.Grouping(evidence.WorkDocumentation); ok {
		docActivity = true
	}
	if docActivity {
		highlights = append(highlights, "Updated documentation")
	}
	return highlights
}

func (m *Mock) risks(bundle *evidence.Bundle) []string {
	risks := []string{}
	if len(bundle.PreviousReports) > 0 {
		for _, risk := range bundle.PreviousReports[0].Risks {
			risks = append(risks, "(Ongoing) "+risk)
		}
	}
	if bug, ok := bundle.Grouping(evidence.WorkBug); ok && bug.OpenIssueCount > 0 {
		risks = append(risks,
			fmt.Sprintf("%s remain open", plural(bug.OpenIssueCount, "bug issue")))
	}
	return risks
}

func (m *Mock) nextSteps(bundle *evidence.Bundle, st types.ReportStatus) []string {
	steps := []string{}
	if n := bundle.OpenPullRequestCount(); n > 0 {
		steps = append(steps, fmt.Sprintf("Review %s", plural(n, "open pull request")))
	}
	if n := bundle.OpenIssueCount(); n > 0 {
		steps = append(steps, fmt.Sprintf("Triage %s", plural(n, "open issue")))
	}
	switch st {
	case types.StatusAtRisk:
		steps = append(steps, "Address the flagged risks before the next reporting window")
	case types.StatusUnknown:
		steps = append(steps, "Investigate why no activity was captured for this window")
	}
	return steps
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func joinList(parts []string) string {
	if len(parts) <= 1 {
		return strings.Join(parts, "")
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}
