package silver_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leynos/ghillie/internal/bronze"
	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/silver"
	"github.com/leynos/ghillie/internal/storage/sqlite"
	"github.com/leynos/ghillie/internal/types"
)

var ingestedAt = time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) (*sqlite.Store, *bronze.Writer, *silver.Transformer) {
	t.Helper()
	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "silver.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, bronze.NewWriter(store, clock.At(ingestedAt)), silver.NewTransformer(store)
}

func ingest(t *testing.T, writer *bronze.Writer, env bronze.Envelope) *types.RawEvent {
	t.Helper()
	row, created, err := writer.Ingest(context.Background(), env)
	require.NoError(t, err)
	require.True(t, created)
	return row
}

func commitEnvelope(sha string, at time.Time) bronze.Envelope {
	return bronze.Envelope{
		SourceSystem:   "github",
		EventType:      types.EventTypeCommit,
		SourceEventID:  sha,
		RepoExternalID: "octo/reef",
		OccurredAt:     at,
		Payload: map[string]any{
			"sha":            sha,
			"message":        "feat: add auth",
			"author_name":    "Dev",
			"author_email":   "dev@example.com",
			"authored_at":    at.Format(time.RFC3339),
			"committed_at":   at.Format(time.RFC3339),
			"default_branch": "main",
		},
	}
}

func TestTransformCommitHydratesEntities(t *testing.T) {
	store, writer, transformer := newFixture(t)
	committed := time.Date(2024, 7, 2, 9, 30, 0, 0, time.UTC)
	row := ingest(t, writer, commitEnvelope("abc123", committed))

	stats, err := transformer.ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Zero(t, stats.Failed)

	repo, err := store.GetRepository(context.Background(), "octo", "reef")
	require.NoError(t, err)
	assert.Equal(t, "main", repo.DefaultBranch)

	commits, err := store.CountCommits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, commits)

	facts, err := store.CountEventFacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, facts)

	refreshed, err := store.GetRawEventByID(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TransformProcessed, refreshed.TransformState)
	assert.Empty(t, refreshed.TransformError)
}

func TestTransformIsIdempotentOnReplay(t *testing.T) {
	store, writer, transformer := newFixture(t)
	row := ingest(t, writer, commitEnvelope("abc123", time.Date(2024, 7, 2, 9, 30, 0, 0, time.UTC)))

	_, err := transformer.ProcessPending(context.Background(), 0)
	require.NoError(t, err)

	// Targeted replay of an already-processed row changes nothing.
	stats, err := transformer.ProcessRawEventIDs(context.Background(), []int64{row.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	commits, err := store.CountCommits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, commits)

	facts, err := store.CountEventFacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, facts)
}

func TestTransformPullRequestAndIssue(t *testing.T) {
	store, writer, transformer := newFixture(t)
	at := time.Date(2024, 7, 4, 8, 0, 0, 0, time.UTC)

	ingest(t, writer, bronze.Envelope{
		SourceSystem:   "github",
		EventType:      types.EventTypePullRequest,
		SourceEventID:  "11",
		RepoExternalID: "octo/reef",
		OccurredAt:     at,
		Payload: map[string]any{
			"id": 11, "number": 4, "title": "Fix flaky login", "state": "merged",
			"labels": []string{"bug"}, "is_draft": false,
			"base_ref": "main", "head_ref": "fix-login", "author": "dev",
			"created_at": "2024-07-01T00:00:00Z", "updated_at": at.Format(time.RFC3339),
			"merged_at": at.Format(time.RFC3339),
		},
	})
	ingest(t, writer, bronze.Envelope{
		SourceSystem:   "github",
		EventType:      types.EventTypeIssue,
		SourceEventID:  "21",
		RepoExternalID: "octo/reef",
		OccurredAt:     at.Add(time.Hour),
		Payload: map[string]any{
			"id": 21, "number": 7, "title": "Crash on save", "state": "open",
			"labels": []string{"bug"}, "author": "reporter",
			"created_at": "2024-07-02T00:00:00Z", "updated_at": at.Add(time.Hour).Format(time.RFC3339),
		},
	})

	stats, err := transformer.ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)

	prs, err := store.CountPullRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, prs)

	issues, err := store.CountIssues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, issues)
}

func TestTransformDocChange(t *testing.T) {
	store, writer, transformer := newFixture(t)
	at := time.Date(2024, 7, 6, 8, 0, 0, 0, time.UTC)

	ingest(t, writer, bronze.Envelope{
		SourceSystem:   "github",
		EventType:      types.EventTypeDocChange,
		SourceEventID:  "abc:docs/roadmap.md",
		RepoExternalID: "octo/reef",
		OccurredAt:     at,
		Payload: map[string]any{
			"commit_sha": "abc", "path": "docs/roadmap.md", "change_type": "modified",
			"is_roadmap": true, "is_adr": false, "message": "docs: refresh roadmap",
		},
	})

	stats, err := transformer.ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	docs, err := store.CountDocumentationChanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, docs)
}

func TestTransformUnknownEventTypeKeepsFactOnly(t *testing.T) {
	store, writer, transformer := newFixture(t)

	ingest(t, writer, bronze.Envelope{
		SourceSystem:   "github",
		EventType:      "github.push",
		SourceEventID:  "evt-1",
		RepoExternalID: "octo/reef",
		OccurredAt:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Payload:        map[string]any{"a": 1},
	})

	stats, err := transformer.ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	facts, err := store.CountEventFacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, facts)

	commits, err := store.CountCommits(context.Background())
	require.NoError(t, err)
	assert.Zero(t, commits)
}

func TestPayloadMismatchMarksFailed(t *testing.T) {
	store, writer, transformer := newFixture(t)
	row := ingest(t, writer, commitEnvelope("abc123", time.Date(2024, 7, 2, 9, 30, 0, 0, time.UTC)))

	// Plant a fact whose payload drifted from the raw event.
	tx, err := store.BeginTransform(context.Background())
	require.NoError(t, err)
	_, err = tx.InsertEventFact(context.Background(), &types.EventFact{
		RawEventID:     row.ID,
		RepoExternalID: row.RepoExternalID,
		EventType:      row.EventType,
		OccurredAt:     row.OccurredAt,
		Payload:        map[string]any{"sha": "different"},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	stats, err := transformer.ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
	assert.Equal(t, 1, stats.Failed)

	refreshed, err := store.GetRawEventByID(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TransformFailed, refreshed.TransformState)
	assert.Contains(t, refreshed.TransformError, "does not match")

	// The drifted fact is left untouched.
	facts, err := store.CountEventFacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, facts)
}

func TestRowFailureDoesNotAbortBatch(t *testing.T) {
	store, writer, transformer := newFixture(t)
	at := time.Date(2024, 7, 4, 8, 0, 0, 0, time.UTC)

	ingest(t, writer, commitEnvelope("good1", at))
	// PR without a numeric id fails promotion.
	ingest(t, writer, bronze.Envelope{
		SourceSystem:   "github",
		EventType:      types.EventTypePullRequest,
		SourceEventID:  "broken",
		RepoExternalID: "octo/reef",
		OccurredAt:     at.Add(time.Minute),
		Payload:        map[string]any{"title": "no id"},
	})
	ingest(t, writer, commitEnvelope("good2", at.Add(2*time.Minute)))

	stats, err := transformer.ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Failed)

	commits, err := store.CountCommits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, commits)
}

func TestProcessPendingHonoursLimit(t *testing.T) {
	store, writer, transformer := newFixture(t)
	at := time.Date(2024, 7, 4, 8, 0, 0, 0, time.UTC)
	for i, sha := range []string{"aaa", "bbb", "ccc"} {
		ingest(t, writer, commitEnvelope(sha, at.Add(time.Duration(i)*time.Minute)))
	}

	stats, err := transformer.ProcessPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)

	pending, err := store.ListPendingRawEvents(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
