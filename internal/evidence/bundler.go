package evidence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/leynos/ghillie/internal/catalogue"
	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/storage"
	"github.com/leynos/ghillie/internal/types"
)

// maxSampleTitles bounds the titles kept per work-type grouping.
const maxSampleTitles = 3

// maxPreviousReports is how many prior reports contribute context.
const maxPreviousReports = 2

// maxSummaryItems bounds highlights and risks taken from each prior
// report.
const maxSummaryItems = 3

// groupingOrder fixes the work-type ordering in bundles.
var groupingOrder = []WorkType{WorkBug, WorkFeature, WorkDocumentation, WorkRefactor, WorkChore, WorkUnknown}

// Bundler builds evidence bundles from Silver facts and Gold coverage.
type Bundler struct {
	store     storage.Storage
	catalogue catalogue.Catalogue
	clock     clock.Clock
}

// NewBundler wires a bundler. The catalogue may be nil for deployments
// without project-scope reports.
func NewBundler(store storage.Storage, cat catalogue.Catalogue, clk clock.Clock) *Bundler {
	return &Bundler{store: store, catalogue: cat, clock: clk}
}

// Build assembles the bundle for a repository over [start, end). The
// repository must exist; facts covered by prior repository-scoped
// reports on it, or project-scoped reports on any project containing
// it, are excluded.
func (b *Bundler) Build(ctx context.Context, owner, name string, start, end time.Time) (*Bundle, error) {
	repo, err := b.store.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("resolve repository %s/%s: %w", owner, name, err)
	}

	var projectIDs []string
	if b.catalogue != nil {
		// A missing linkage degrades to repository-scope exclusion only.
		if ids, err := b.catalogue.ProjectsForRepository(ctx, repo.Slug()); err == nil {
			projectIDs = ids
		}
	}

	facts, err := b.store.ListUncoveredEventFacts(ctx, storage.FactWindowQuery{
		RepoExternalID: repo.Slug(),
		RepositoryID:   repo.ID,
		ProjectIDs:     projectIDs,
		Start:          start,
		End:            end,
	})
	if err != nil {
		return nil, fmt.Errorf("list event facts: %w", err)
	}

	bundle := &Bundle{
		Repository:  repo,
		WindowStart: start,
		WindowEnd:   end,
		GeneratedAt: b.clock.Now(),
	}
	for _, fact := range facts {
		bundle.EventFactIDs = append(bundle.EventFactIDs, fact.ID)
		switch fact.EventType {
		case types.EventTypeCommit:
			bundle.Commits = append(bundle.Commits, coerceCommit(fact))
		case types.EventTypePullRequest:
			bundle.PullRequests = append(bundle.PullRequests, coercePullRequest(fact))
		case types.EventTypeIssue:
			bundle.Issues = append(bundle.Issues, coerceIssue(fact))
		case types.EventTypeDocChange:
			bundle.DocChanges = append(bundle.DocChanges, coerceDocChange(fact))
		}
	}
	bundle.WorkTypeGroupings = buildGroupings(bundle)

	if err := b.attachPreviousReports(ctx, bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (b *Bundler) attachPreviousReports(ctx context.Context, bundle *Bundle) error {
	reports, err := b.store.ListRecentReports(ctx, bundle.Repository.ID, maxPreviousReports)
	if err != nil {
		return fmt.Errorf("list previous reports: %w", err)
	}
	bundle.PreviousReports = lo.Map(reports, func(r *types.Report, _ int) PreviousReportSummary {
		return PreviousReportSummary{
			Status:      r.MachineSummary.Status,
			Highlights:  lo.Slice(r.MachineSummary.Highlights, 0, maxSummaryItems),
			Risks:       lo.Slice(r.MachineSummary.Risks, 0, maxSummaryItems),
			GeneratedAt: r.GeneratedAt,
		}
	})
	return nil
}

// buildGroupings sums per-work-type counts. Merge commits stay in the
// commit list but never count toward a grouping.
func buildGroupings(bundle *Bundle) []WorkTypeGrouping {
	byType := make(map[WorkType]*WorkTypeGrouping)
	grouping := func(wt WorkType) *WorkTypeGrouping {
		if g, ok := byType[wt]; ok {
			return g
		}
		g := &WorkTypeGrouping{WorkType: wt}
		byType[wt] = g
		return g
	}
	addTitle := func(g *WorkTypeGrouping, title string) {
		if title != "" && len(g.SampleTitles) < maxSampleTitles {
			g.SampleTitles = append(g.SampleTitles, title)
		}
	}

	for _, commit := range bundle.Commits {
		if commit.IsMergeCommit {
			continue
		}
		g := grouping(commit.WorkType)
		g.CommitCount++
		addTitle(g, firstLine(commit.Message))
	}
	for _, pr := range bundle.PullRequests {
		g := grouping(pr.WorkType)
		g.PullRequestCount++
		addTitle(g, pr.Title)
	}
	for _, issue := range bundle.Issues {
		g := grouping(issue.WorkType)
		g.IssueCount++
		if issue.State == "open" {
			g.OpenIssueCount++
		}
		addTitle(g, issue.Title)
	}

	var out []WorkTypeGrouping
	for _, wt := range groupingOrder {
		if g, ok := byType[wt]; ok && g.Total() > 0 {
			out = append(out, *g)
		}
	}
	return out
}

func coerceCommit(fact *types.EventFact) CommitEvidence {
	message := stringField(fact.Payload, "message")
	return CommitEvidence{
		SHA:           stringField(fact.Payload, "sha"),
		Message:       message,
		Author:        stringField(fact.Payload, "author_name"),
		OccurredAt:    fact.OccurredAt,
		WorkType:      Classify(nil, message),
		IsMergeCommit: IsMergeCommit(message),
	}
}

func coercePullRequest(fact *types.EventFact) PullRequestEvidence {
	labels := stringsField(fact.Payload, "labels")
	title := stringField(fact.Payload, "title")
	id, _ := intField(fact.Payload, "id")
	number, _ := intField(fact.Payload, "number")
	return PullRequestEvidence{
		ID:         id,
		Number:     int(number),
		Title:      title,
		State:      stringField(fact.Payload, "state"),
		Labels:     labels,
		OccurredAt: fact.OccurredAt,
		WorkType:   Classify(labels, title),
	}
}

func coerceIssue(fact *types.EventFact) IssueEvidence {
	labels := stringsField(fact.Payload, "labels")
	title := stringField(fact.Payload, "title")
	id, _ := intField(fact.Payload, "id")
	number, _ := intField(fact.Payload, "number")
	return IssueEvidence{
		ID:         id,
		Number:     int(number),
		Title:      title,
		State:      stringField(fact.Payload, "state"),
		Labels:     labels,
		OccurredAt: fact.OccurredAt,
		WorkType:   Classify(labels, title),
	}
}

func coerceDocChange(fact *types.EventFact) DocChangeEvidence {
	return DocChangeEvidence{
		CommitSHA:  stringField(fact.Payload, "commit_sha"),
		Path:       stringField(fact.Payload, "path"),
		ChangeType: stringField(fact.Payload, "change_type"),
		IsRoadmap:  boolField(fact.Payload, "is_roadmap"),
		IsADR:      boolField(fact.Payload, "is_adr"),
		OccurredAt: fact.OccurredAt,
	}
}

func firstLine(message string) string {
	for i, r := range message {
		if r == '\n' {
			return message[:i]
		}
	}
	return message
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func boolField(payload map[string]any, key string) bool {
	b, _ := payload[key].(bool)
	return b
}

// intField accepts both integer and string identifier forms.
func intField(payload map[string]any, key string) (int64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

func stringsField(payload map[string]any, key string) []string {
	switch v := payload[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
