package evidence_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leynos/ghillie/internal/bronze"
	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/evidence"
	"github.com/leynos/ghillie/internal/ids"
	"github.com/leynos/ghillie/internal/silver"
	"github.com/leynos/ghillie/internal/storage"
	"github.com/leynos/ghillie/internal/storage/sqlite"
	"github.com/leynos/ghillie/internal/types"
)

var bundleNow = time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store   *sqlite.Store
	writer  *bronze.Writer
	bundler *evidence.Bundler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "evidence.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return &fixture{
		store:   store,
		writer:  bronze.NewWriter(store, clock.At(bundleNow)),
		bundler: evidence.NewBundler(store, nil, clock.At(bundleNow)),
	}
}

// seed ingests and transforms the envelopes so they surface as facts.
func (f *fixture) seed(t *testing.T, envs ...bronze.Envelope) {
	t.Helper()
	for _, env := range envs {
		_, _, err := f.writer.Ingest(context.Background(), env)
		require.NoError(t, err)
	}
	stats, err := silver.NewTransformer(f.store).ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, stats.Failed)
}

func envelope(eventType, sourceID string, at time.Time, payload map[string]any) bronze.Envelope {
	return bronze.Envelope{
		SourceSystem:   "github",
		EventType:      eventType,
		SourceEventID:  sourceID,
		RepoExternalID: "octo/reef",
		OccurredAt:     at,
		Payload:        payload,
	}
}

func scenarioEnvelopes() []bronze.Envelope {
	return []bronze.Envelope{
		envelope(types.EventTypeCommit, "c1", time.Date(2024, 7, 3, 10, 0, 0, 0, time.UTC), map[string]any{
			"sha": "c1", "message": "feat: add auth", "author_name": "Dev", "default_branch": "main",
		}),
		envelope(types.EventTypePullRequest, "11", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), map[string]any{
			"id": 11, "number": 4, "title": "Fix flaky login", "state": "open",
			"labels": []string{"bug"}, "default_branch": "main",
		}),
		envelope(types.EventTypeIssue, "21", time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC), map[string]any{
			"id": 21, "number": 7, "title": "Crash on save", "state": "open",
			"labels": []string{"bug"}, "default_branch": "main",
		}),
		envelope(types.EventTypeDocChange, "c2:docs/roadmap.md", time.Date(2024, 7, 6, 0, 0, 0, 0, time.UTC), map[string]any{
			"commit_sha": "c2", "path": "docs/roadmap.md", "change_type": "modified",
			"is_roadmap": true, "is_adr": false, "default_branch": "main",
		}),
	}
}

func window() (time.Time, time.Time) {
	return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC)
}

func TestBundleAssemblesScenario(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scenarioEnvelopes()...)
	start, end := window()

	bundle, err := f.bundler.Build(context.Background(), "octo", "reef", start, end)
	require.NoError(t, err)

	assert.Equal(t, 4, bundle.TotalEventCount())
	assert.Len(t, bundle.EventFactIDs, 4)
	assert.Equal(t, bundleNow, bundle.GeneratedAt)
	assert.False(t, bundle.HasPreviousContext())

	require.Len(t, bundle.Commits, 1)
	assert.Equal(t, evidence.WorkFeature, bundle.Commits[0].WorkType)
	require.Len(t, bundle.PullRequests, 1)
	assert.Equal(t, evidence.WorkBug, bundle.PullRequests[0].WorkType)
	require.Len(t, bundle.DocChanges, 1)
	assert.True(t, bundle.DocChanges[0].IsRoadmap)

	bug, ok := bundle.Grouping(evidence.WorkBug)
	require.True(t, ok)
	assert.Equal(t, 2, bug.Total())
	assert.Equal(t, 1, bug.OpenIssueCount)

	feature, ok := bundle.Grouping(evidence.WorkFeature)
	require.True(t, ok)
	assert.Equal(t, 1, feature.CommitCount)
	assert.Contains(t, feature.SampleTitles, "feat: add auth")
}

func TestBundleWindowIsHalfOpen(t *testing.T) {
	f := newFixture(t)
	start, end := window()
	f.seed(t,
		envelope(types.EventTypeCommit, "edge", end, map[string]any{
			"sha": "edge", "message": "feat: at window end", "default_branch": "main",
		}),
		envelope(types.EventTypeCommit, "inside", end.Add(-time.Second), map[string]any{
			"sha": "inside", "message": "feat: inside", "default_branch": "main",
		}),
	)

	bundle, err := f.bundler.Build(context.Background(), "octo", "reef", start, end)
	require.NoError(t, err)
	require.Len(t, bundle.Commits, 1)
	assert.Equal(t, "inside", bundle.Commits[0].SHA)
}

func TestBundleExcludesCoveredFacts(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scenarioEnvelopes()...)
	start, end := window()

	first, err := f.bundler.Build(context.Background(), "octo", "reef", start, end)
	require.NoError(t, err)
	require.Len(t, first.EventFactIDs, 4)

	report := &types.Report{
		ID:           ids.NewID(),
		Scope:        types.ScopeRepository,
		RepositoryID: first.Repository.ID,
		WindowStart:  start,
		WindowEnd:    end,
		Model:        "mock",
		MachineSummary: types.MachineSummary{
			Status: types.StatusOnTrack, Summary: "steady",
			Highlights: []string{}, Risks: []string{}, NextSteps: []string{},
		},
		GeneratedAt: bundleNow,
	}
	require.NoError(t, f.store.SaveReport(context.Background(), report, first.EventFactIDs))

	second, err := f.bundler.Build(context.Background(), "octo", "reef", start, end)
	require.NoError(t, err)
	assert.Zero(t, second.TotalEventCount())
	assert.Empty(t, second.EventFactIDs)
	assert.True(t, second.HasPreviousContext())
	require.Len(t, second.PreviousReports, 1)
	assert.Equal(t, types.StatusOnTrack, second.PreviousReports[0].Status)
}

func TestMergeCommitsStayOutOfGroupings(t *testing.T) {
	f := newFixture(t)
	start, end := window()
	f.seed(t,
		envelope(types.EventTypeCommit, "m1", start.Add(time.Hour), map[string]any{
			"sha": "m1", "message": "Merge pull request #42 from octo/feature", "default_branch": "main",
		}),
		envelope(types.EventTypeCommit, "f1", start.Add(2*time.Hour), map[string]any{
			"sha": "f1", "message": "feat: shiny", "default_branch": "main",
		}),
	)

	bundle, err := f.bundler.Build(context.Background(), "octo", "reef", start, end)
	require.NoError(t, err)

	require.Len(t, bundle.Commits, 2)
	merged := 0
	for _, c := range bundle.Commits {
		if c.IsMergeCommit {
			merged++
		}
	}
	assert.Equal(t, 1, merged)

	total := 0
	for _, g := range bundle.WorkTypeGroupings {
		total += g.CommitCount
	}
	assert.Equal(t, 1, total)
}

func TestBundleUnknownRepositoryFails(t *testing.T) {
	f := newFixture(t)
	start, end := window()
	_, err := f.bundler.Build(context.Background(), "no", "such", start, end)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBundleAcceptsStringIdentifiers(t *testing.T) {
	f := newFixture(t)
	start, end := window()
	f.seed(t, envelope(types.EventTypePullRequest, "31", start.Add(time.Hour), map[string]any{
		"id": "31", "number": "9", "title": "feat: stringly", "state": "open", "default_branch": "main",
	}))

	bundle, err := f.bundler.Build(context.Background(), "octo", "reef", start, end)
	require.NoError(t, err)
	require.Len(t, bundle.PullRequests, 1)
	assert.Equal(t, int64(31), bundle.PullRequests[0].ID)
	assert.Equal(t, 9, bundle.PullRequests[0].Number)
}
