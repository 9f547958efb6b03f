// Package evidence assembles repository activity bundles over half-open
// windows, excluding event facts already covered by prior in-scope
// reports.
package evidence

import (
	"time"

	"github.com/leynos/ghillie/internal/types"
)

// WorkType classifies a commit, pull request or issue by the kind of
// work it represents.
type WorkType string

const (
	WorkBug           WorkType = "BUG"
	WorkFeature       WorkType = "FEATURE"
	WorkDocumentation WorkType = "DOCUMENTATION"
	WorkRefactor      WorkType = "REFACTOR"
	WorkChore         WorkType = "CHORE"
	WorkUnknown       WorkType = "UNKNOWN"
)

// CommitEvidence is one commit inside a bundle window.
type CommitEvidence struct {
	SHA           string
	Message       string
	Author        string
	OccurredAt    time.Time
	WorkType      WorkType
	IsMergeCommit bool
}

// PullRequestEvidence is one pull request inside a bundle window.
type PullRequestEvidence struct {
	ID         int64
	Number     int
	Title      string
	State      string
	Labels     []string
	OccurredAt time.Time
	WorkType   WorkType
}

// IssueEvidence is one issue inside a bundle window.
type IssueEvidence struct {
	ID         int64
	Number     int
	Title      string
	State      string
	Labels     []string
	OccurredAt time.Time
	WorkType   WorkType
}

// DocChangeEvidence is one documentation change inside a bundle window.
type DocChangeEvidence struct {
	CommitSHA  string
	Path       string
	ChangeType string
	IsRoadmap  bool
	IsADR      bool
	OccurredAt time.Time
}

// WorkTypeGrouping sums bundle activity per work type. Merge commits
// are excluded from commit counts.
type WorkTypeGrouping struct {
	WorkType         WorkType
	CommitCount      int
	PullRequestCount int
	IssueCount       int
	OpenIssueCount   int
	SampleTitles     []string
}

// Total is the grouping's combined event count.
func (g WorkTypeGrouping) Total() int {
	return g.CommitCount + g.PullRequestCount + g.IssueCount
}

// PreviousReportSummary carries the context a prior report contributes
// to the next one.
type PreviousReportSummary struct {
	Status      types.ReportStatus
	Highlights  []string
	Risks       []string
	GeneratedAt time.Time
}

// Bundle is an immutable snapshot of one repository's activity within
// [WindowStart, WindowEnd).
type Bundle struct {
	Repository        *types.Repository
	WindowStart       time.Time
	WindowEnd         time.Time
	Commits           []CommitEvidence
	PullRequests      []PullRequestEvidence
	Issues            []IssueEvidence
	DocChanges        []DocChangeEvidence
	WorkTypeGroupings []WorkTypeGrouping
	PreviousReports   []PreviousReportSummary
	EventFactIDs      []int64
	GeneratedAt       time.Time
}

// TotalEventCount sums commits, pull requests, issues and doc changes.
func (b *Bundle) TotalEventCount() int {
	return len(b.Commits) + len(b.PullRequests) + len(b.Issues) + len(b.DocChanges)
}

// HasPreviousContext reports whether prior reports contributed context.
func (b *Bundle) HasPreviousContext() bool {
	return len(b.PreviousReports) > 0
}

// Grouping returns the grouping for a work type, if present.
func (b *Bundle) Grouping(wt WorkType) (WorkTypeGrouping, bool) {
	for _, g := range b.WorkTypeGroupings {
		if g.WorkType == wt {
			return g, true
		}
	}
	return WorkTypeGrouping{}, false
}

// OpenPullRequestCount counts bundle PRs still in state open.
func (b *Bundle) OpenPullRequestCount() int {
	n := 0
	for _, pr := range b.PullRequests {
		if pr.State == "open" {
			n++
		}
	}
	return n
}

// OpenIssueCount counts bundle issues still in state open.
func (b *Bundle) OpenIssueCount() int {
	n := 0
	for _, issue := range b.Issues {
		if issue.State == "open" {
			n++
		}
	}
	return n
}
