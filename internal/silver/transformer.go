// Package silver promotes pending Bronze rows into the event-fact
// ledger and typed entities. Promotion is idempotent: replays and
// concurrent transformers converge on the same Silver state.
package silver

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/leynos/ghillie/internal/storage"
	"github.com/leynos/ghillie/internal/storage/sqlite"
	"github.com/leynos/ghillie/internal/types"
)

// batchSize is how many rows are promoted per transaction commit.
const batchSize = 100

// Failure reasons recorded on RawEvent.transform_error.
const (
	reasonPayloadMismatch = "event fact payload does not match raw event payload"
	reasonConcurrentLoss  = "event fact vanished after concurrent insert"
)

// Stats summarizes one transformer invocation.
type Stats struct {
	Processed int
	Failed    int
}

// Transformer drives Bronze to Silver promotion.
type Transformer struct {
	store storage.Storage
}

// NewTransformer creates a transformer over the given store.
func NewTransformer(store storage.Storage) *Transformer {
	return &Transformer{store: store}
}

// ProcessPending promotes PENDING rows in Bronze id order, committing
// every batch. A limit of zero or less means no limit.
func (t *Transformer) ProcessPending(ctx context.Context, limit int) (*Stats, error) {
	stats := &Stats{}
	var afterID int64
	remaining := limit

	for {
		fetch := batchSize
		if limit > 0 && remaining < fetch {
			fetch = remaining
		}
		if fetch == 0 {
			return stats, nil
		}

		rows, err := t.store.ListPendingRawEvents(ctx, afterID, fetch)
		if err != nil {
			return stats, fmt.Errorf("list pending raw events: %w", err)
		}
		if len(rows) == 0 {
			return stats, nil
		}

		if err := t.processBatch(ctx, rows, stats); err != nil {
			return stats, err
		}
		afterID = rows[len(rows)-1].ID
		if limit > 0 {
			remaining -= len(rows)
			if remaining <= 0 {
				return stats, nil
			}
		}
	}
}

// ProcessRawEventIDs promotes the given rows regardless of their
// transform state, for targeted replay.
func (t *Transformer) ProcessRawEventIDs(ctx context.Context, ids []int64) (*Stats, error) {
	stats := &Stats{}
	if len(ids) == 0 {
		return stats, nil
	}
	rows, err := t.store.ListRawEventsByIDs(ctx, ids)
	if err != nil {
		return stats, fmt.Errorf("list raw events: %w", err)
	}

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := t.processBatch(ctx, rows[start:end], stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// processBatch promotes one batch inside a single transaction. Row
// failures are isolated by savepoints; batch-level DB errors abort the
// whole batch.
func (t *Transformer) processBatch(ctx context.Context, rows []*types.RawEvent, stats *Stats) error {
	tx, err := t.store.BeginTransform(ctx)
	if err != nil {
		return fmt.Errorf("begin transform: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, row := range rows {
		sp := fmt.Sprintf("row_%d", i)
		if err := tx.Savepoint(ctx, sp); err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		failReason, err := t.processRow(ctx, tx, row)
		if err != nil {
			// The row's partial writes are rolled back; the failure is
			// recorded without disturbing earlier rows in the batch.
			if rbErr := tx.RollbackTo(ctx, sp); rbErr != nil {
				return fmt.Errorf("rollback to savepoint: %w", rbErr)
			}
			failReason = err.Error()
		}
		if failReason != "" {
			if err := tx.SetTransformState(ctx, row.ID, types.TransformFailed, failReason); err != nil {
				return fmt.Errorf("mark raw event failed: %w", err)
			}
			stats.Failed++
		} else {
			if err := tx.SetTransformState(ctx, row.ID, types.TransformProcessed, ""); err != nil {
				return fmt.Errorf("mark raw event processed: %w", err)
			}
			stats.Processed++
		}
		if err := tx.Release(ctx, sp); err != nil {
			return fmt.Errorf("release savepoint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transform batch: %w", err)
	}
	return nil
}

// processRow promotes one raw event. It returns a non-empty failure
// reason for row-level faults that should mark the row FAILED without
// rolling anything back, and an error for faults whose partial writes
// must be rolled back to the row savepoint first.
func (t *Transformer) processRow(ctx context.Context, tx storage.TransformTx, row *types.RawEvent) (string, error) {
	existing, err := tx.GetEventFactByRawEventID(ctx, row.ID)
	switch {
	case err == nil:
		if !payloadsEqual(existing.Payload, row.Payload) {
			return reasonPayloadMismatch, nil
		}
		// Already promoted; entities were written alongside the fact.
		return "", nil
	case errors.Is(err, storage.ErrNotFound):
		// First promotion of this row.
	default:
		return "", fmt.Errorf("look up event fact: %w", err)
	}

	payload, err := types.ClonePayload(row.Payload)
	if err != nil {
		return "", fmt.Errorf("clone payload: %w", err)
	}
	fact := &types.EventFact{
		RawEventID:     row.ID,
		RepoExternalID: row.RepoExternalID,
		EventType:      row.EventType,
		OccurredAt:     row.OccurredAt,
		Payload:        payload,
	}
	if _, err := tx.InsertEventFact(ctx, fact); err != nil {
		if !sqlite.IsUniqueConstraintError(err) {
			return "", fmt.Errorf("insert event fact: %w", err)
		}
		// A concurrent transformer won the insert; reread and verify.
		concurrent, rerr := tx.GetEventFactByRawEventID(ctx, row.ID)
		if errors.Is(rerr, storage.ErrNotFound) {
			return reasonConcurrentLoss, nil
		}
		if rerr != nil {
			return "", fmt.Errorf("reread event fact: %w", rerr)
		}
		if !payloadsEqual(concurrent.Payload, row.Payload) {
			return reasonPayloadMismatch, nil
		}
		return "", nil
	}

	if err := t.promoteEntities(ctx, tx, row); err != nil {
		return "", err
	}
	return "", nil
}

// promoteEntities upserts the typed entity for a known event type.
// Unknown event types keep only their event fact.
func (t *Transformer) promoteEntities(ctx context.Context, tx storage.TransformTx, row *types.RawEvent) error {
	owner, name, ok := splitSlug(row.RepoExternalID)
	if !ok {
		return fmt.Errorf("malformed repo external id %q", row.RepoExternalID)
	}

	switch row.EventType {
	case types.EventTypeCommit, types.EventTypePullRequest, types.EventTypeIssue, types.EventTypeDocChange:
	default:
		return nil
	}

	repo, err := tx.UpsertRepository(ctx, &types.Repository{
		Owner:         owner,
		Name:          name,
		DefaultBranch: stringField(row.Payload, "default_branch"),
	})
	if err != nil {
		return fmt.Errorf("upsert repository: %w", err)
	}

	switch row.EventType {
	case types.EventTypeCommit:
		return t.promoteCommit(ctx, tx, repo, row)
	case types.EventTypePullRequest:
		return t.promotePullRequest(ctx, tx, repo, row)
	case types.EventTypeIssue:
		return t.promoteIssue(ctx, tx, repo, row)
	case types.EventTypeDocChange:
		return t.promoteDocChange(ctx, tx, repo, row)
	}
	return nil
}

func (t *Transformer) promoteCommit(ctx context.Context, tx storage.TransformTx, repo *types.Repository, row *types.RawEvent) error {
	sha := stringField(row.Payload, "sha")
	if sha == "" {
		sha = row.SourceEventID
	}
	if sha == "" {
		return errors.New("commit event without sha")
	}
	return tx.UpsertCommit(ctx, &types.Commit{
		SHA:          sha,
		RepositoryID: repo.ID,
		Message:      stringField(row.Payload, "message"),
		AuthorName:   stringField(row.Payload, "author_name"),
		AuthorEmail:  stringField(row.Payload, "author_email"),
		AuthoredAt:   timeField(row.Payload, "authored_at", row.OccurredAt),
		CommittedAt:  timeField(row.Payload, "committed_at", row.OccurredAt),
		Metadata:     map[string]any{"default_branch": stringField(row.Payload, "default_branch")},
	})
}

func (t *Transformer) promotePullRequest(ctx context.Context, tx storage.TransformTx, repo *types.Repository, row *types.RawEvent) error {
	id, ok := intField(row.Payload, "id")
	if !ok {
		return errors.New("pull request event without numeric id")
	}
	number, _ := intField(row.Payload, "number")
	return tx.UpsertPullRequest(ctx, &types.PullRequest{
		ID:           id,
		RepositoryID: repo.ID,
		Number:       int(number),
		Title:        stringField(row.Payload, "title"),
		State:        pullRequestState(stringField(row.Payload, "state")),
		Labels:       stringsField(row.Payload, "labels"),
		IsDraft:      boolField(row.Payload, "is_draft"),
		BaseRef:      stringField(row.Payload, "base_ref"),
		HeadRef:      stringField(row.Payload, "head_ref"),
		CreatedAt:    timeField(row.Payload, "created_at", row.OccurredAt),
		UpdatedAt:    timeField(row.Payload, "updated_at", row.OccurredAt),
		MergedAt:     timePtrField(row.Payload, "merged_at"),
		ClosedAt:     timePtrField(row.Payload, "closed_at"),
		Metadata:     map[string]any{"author": stringField(row.Payload, "author")},
	})
}

func (t *Transformer) promoteIssue(ctx context.Context, tx storage.TransformTx, repo *types.Repository, row *types.RawEvent) error {
	id, ok := intField(row.Payload, "id")
	if !ok {
		return errors.New("issue event without numeric id")
	}
	number, _ := intField(row.Payload, "number")
	return tx.UpsertIssue(ctx, &types.Issue{
		ID:           id,
		RepositoryID: repo.ID,
		Number:       int(number),
		Title:        stringField(row.Payload, "title"),
		State:        issueState(stringField(row.Payload, "state")),
		Labels:       stringsField(row.Payload, "labels"),
		CreatedAt:    timeField(row.Payload, "created_at", row.OccurredAt),
		UpdatedAt:    timeField(row.Payload, "updated_at", row.OccurredAt),
		ClosedAt:     timePtrField(row.Payload, "closed_at"),
		Metadata:     map[string]any{"author": stringField(row.Payload, "author")},
	})
}

func (t *Transformer) promoteDocChange(ctx context.Context, tx storage.TransformTx, repo *types.Repository, row *types.RawEvent) error {
	sha := stringField(row.Payload, "commit_sha")
	path := stringField(row.Payload, "path")
	if sha == "" || path == "" {
		return errors.New("doc change event without commit sha or path")
	}
	return tx.UpsertDocumentationChange(ctx, &types.DocumentationChange{
		RepositoryID: repo.ID,
		CommitSHA:    sha,
		Path:         path,
		ChangeType:   stringField(row.Payload, "change_type"),
		IsRoadmap:    boolField(row.Payload, "is_roadmap"),
		IsADR:        boolField(row.Payload, "is_adr"),
		OccurredAt:   row.OccurredAt,
		Metadata:     map[string]any{"message": stringField(row.Payload, "message")},
	})
}

func pullRequestState(raw string) types.PullRequestState {
	switch strings.ToLower(raw) {
	case "merged":
		return types.PRStateMerged
	case "closed":
		return types.PRStateClosed
	default:
		return types.PRStateOpen
	}
}

func issueState(raw string) types.IssueState {
	if strings.ToLower(raw) == "closed" {
		return types.IssueStateClosed
	}
	return types.IssueStateOpen
}

// payloadsEqual compares two JSON-shaped payloads structurally. Both
// sides come from JSON decoding, so value types are already canonical.
func payloadsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func splitSlug(slug string) (owner, name string, ok bool) {
	owner, name, found := strings.Cut(slug, "/")
	if !found || owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func boolField(payload map[string]any, key string) bool {
	b, _ := payload[key].(bool)
	return b
}

// intField accepts both integer and string forms of an identifier.
func intField(payload map[string]any, key string) (int64, bool) {
	switch v := payload[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
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

func timeField(payload map[string]any, key string, fallback time.Time) time.Time {
	if ts := timePtrField(payload, key); ts != nil {
		return *ts
	}
	return fallback
}

func timePtrField(payload map[string]any, key string) *time.Time {
	raw, ok := payload[key].(string)
	if !ok || raw == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}
