package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leynos/ghillie/internal/faults"
	"github.com/leynos/ghillie/internal/types"
)

const rawEventColumns = `id, source_system, source_event_id, event_type, repo_external_id,
	occurred_at, ingested_at, dedupe_key, payload, transform_state, transform_error`

// InsertRawEvent appends a Bronze row. On a dedupe collision the existing
// row is returned with created=false; the insert never updates rows. An
// unreconciled collision (matched key but no readable row) is a
// data-integrity failure.
func (s *Store) InsertRawEvent(ctx context.Context, ev *types.RawEvent) (*types.RawEvent, bool, error) {
	payload, err := marshalMap(ev.Payload)
	if err != nil {
		return nil, false, err
	}

	insertErr := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO raw_events (source_system, source_event_id, event_type, repo_external_id,
				occurred_at, ingested_at, dedupe_key, payload, transform_state)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'PENDING')`,
			ev.SourceSystem, nullStr(ev.SourceEventID), ev.EventType, nullStr(ev.RepoExternalID),
			storeTime(ev.OccurredAt), storeTime(ev.IngestedAt), ev.DedupeKey, payload)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return wrapDBError("raw event insert id", err)
		}
		ev.ID = id
		return nil
	})

	if insertErr == nil {
		inserted := *ev
		inserted.TransformState = types.TransformPending
		return &inserted, true, nil
	}

	if !IsUniqueConstraintError(insertErr) {
		return nil, false, wrapDBError("insert raw event", insertErr)
	}

	existing, err := s.getRawEventByDedupeKey(ctx, ev.SourceSystem, ev.DedupeKey)
	if err != nil {
		if IsNotFound(err) {
			return nil, false, faults.Wrap(
				fmt.Errorf("raw event with dedupe key %s vanished after unique violation", ev.DedupeKey),
				faults.CategoryIntegrity)
		}
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) getRawEventByDedupeKey(ctx context.Context, sourceSystem, dedupeKey string) (*types.RawEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+rawEventColumns+` FROM raw_events WHERE source_system = ? AND dedupe_key = ?`,
		sourceSystem, dedupeKey)
	return scanRawEvent(row)
}

// GetRawEventByID fetches one Bronze row.
func (s *Store) GetRawEventByID(ctx context.Context, id int64) (*types.RawEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+rawEventColumns+` FROM raw_events WHERE id = ?`, id)
	return scanRawEvent(row)
}

// ListPendingRawEvents returns up to limit PENDING rows with id greater
// than afterID, in id order. The transformer pages through the backlog
// with this.
func (s *Store) ListPendingRawEvents(ctx context.Context, afterID int64, limit int) ([]*types.RawEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+rawEventColumns+` FROM raw_events
		WHERE transform_state = 'PENDING' AND id > ?
		ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, wrapDBError("list pending raw events", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRawEvents(rows)
}

// ListRawEventsByIDs returns the named rows regardless of transform
// state, in id order. Used for targeted replay.
func (s *Store) ListRawEventsByIDs(ctx context.Context, ids []int64) ([]*types.RawEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rawEventColumns+` FROM raw_events WHERE id IN (`+placeholders+`) ORDER BY id ASC`,
		args...)
	if err != nil {
		return nil, wrapDBError("list raw events by ids", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRawEvents(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRawEvent(row rowScanner) (*types.RawEvent, error) {
	var ev types.RawEvent
	var sourceEventID, repoExternalID, transformError sql.NullString
	var occurredAt, ingestedAt, payload, state string

	err := row.Scan(&ev.ID, &ev.SourceSystem, &sourceEventID, &ev.EventType, &repoExternalID,
		&occurredAt, &ingestedAt, &ev.DedupeKey, &payload, &state, &transformError)
	if err != nil {
		return nil, wrapDBError("scan raw event", err)
	}

	ev.SourceEventID = sourceEventID.String
	ev.RepoExternalID = repoExternalID.String
	ev.TransformState = types.TransformState(state)
	ev.TransformError = transformError.String
	if ev.OccurredAt, err = parseTime(occurredAt); err != nil {
		return nil, err
	}
	if ev.IngestedAt, err = parseTime(ingestedAt); err != nil {
		return nil, err
	}
	if ev.Payload, err = unmarshalPayload(payload); err != nil {
		return nil, err
	}
	return &ev, nil
}

func scanRawEvents(rows *sql.Rows) ([]*types.RawEvent, error) {
	var out []*types.RawEvent
	for rows.Next() {
		ev, err := scanRawEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate raw events", err)
	}
	return out, nil
}

// GetIngestionOffset fetches the cursor row for a repository. Returns
// storage.ErrNotFound when the repo has never been ingested.
func (s *Store) GetIngestionOffset(ctx context.Context, repoExternalID string) (*types.IngestionOffset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT repo_external_id,
			last_commit_ingested_at, last_commit_seen_at, last_commit_cursor,
			last_pull_request_ingested_at, last_pull_request_seen_at, last_pull_request_cursor,
			last_issue_ingested_at, last_issue_seen_at, last_issue_cursor,
			last_doc_change_ingested_at, last_doc_change_seen_at, last_doc_change_cursor,
			updated_at
		FROM github_ingestion_offsets WHERE repo_external_id = ?`, repoExternalID)
	return scanOffset(row)
}

// ListIngestionOffsets returns every cursor row. The health service
// computes lag metrics over this.
func (s *Store) ListIngestionOffsets(ctx context.Context) ([]*types.IngestionOffset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT repo_external_id,
			last_commit_ingested_at, last_commit_seen_at, last_commit_cursor,
			last_pull_request_ingested_at, last_pull_request_seen_at, last_pull_request_cursor,
			last_issue_ingested_at, last_issue_seen_at, last_issue_cursor,
			last_doc_change_ingested_at, last_doc_change_seen_at, last_doc_change_cursor,
			updated_at
		FROM github_ingestion_offsets ORDER BY repo_external_id`)
	if err != nil {
		return nil, wrapDBError("list ingestion offsets", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.IngestionOffset
	for rows.Next() {
		offset, err := scanOffset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, offset)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate ingestion offsets", err)
	}
	return out, nil
}

func scanOffset(row rowScanner) (*types.IngestionOffset, error) {
	var repo, updatedAt string
	fields := make([]sql.NullString, 12)
	dest := []any{&repo}
	for i := range fields {
		dest = append(dest, &fields[i])
	}
	dest = append(dest, &updatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, wrapDBError("scan ingestion offset", err)
	}

	offset := types.NewIngestionOffset(repo)
	for i, kind := range types.AllKinds {
		ingested, err := parseTimeNull(fields[i*3])
		if err != nil {
			return nil, err
		}
		seen, err := parseTimeNull(fields[i*3+1])
		if err != nil {
			return nil, err
		}
		var cursor *string
		if fields[i*3+2].Valid && fields[i*3+2].String != "" {
			c := fields[i*3+2].String
			cursor = &c
		}
		offset.Kinds[kind] = types.KindOffset{
			LastIngestedAt: ingested,
			LastSeenAt:     seen,
			LastCursor:     cursor,
		}
	}

	parsed, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	offset.UpdatedAt = parsed
	return offset, nil
}

// MergeIngestionOffset writes the full cursor row, last-writer-wins.
// Concurrent workers for the same repo are tolerated: overlap plus
// dedupe make a temporarily regressed watermark safe.
func (s *Store) MergeIngestionOffset(ctx context.Context, offset *types.IngestionOffset) error {
	args := []any{offset.RepoExternalID}
	for _, kind := range types.AllKinds {
		k := offset.Kinds[kind]
		args = append(args, storeTimePtr(k.LastIngestedAt), storeTimePtr(k.LastSeenAt), cursorValue(k.LastCursor))
	}
	args = append(args, storeTime(offset.UpdatedAt))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO github_ingestion_offsets (repo_external_id,
			last_commit_ingested_at, last_commit_seen_at, last_commit_cursor,
			last_pull_request_ingested_at, last_pull_request_seen_at, last_pull_request_cursor,
			last_issue_ingested_at, last_issue_seen_at, last_issue_cursor,
			last_doc_change_ingested_at, last_doc_change_seen_at, last_doc_change_cursor,
			updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_external_id) DO UPDATE SET
			last_commit_ingested_at = excluded.last_commit_ingested_at,
			last_commit_seen_at = excluded.last_commit_seen_at,
			last_commit_cursor = excluded.last_commit_cursor,
			last_pull_request_ingested_at = excluded.last_pull_request_ingested_at,
			last_pull_request_seen_at = excluded.last_pull_request_seen_at,
			last_pull_request_cursor = excluded.last_pull_request_cursor,
			last_issue_ingested_at = excluded.last_issue_ingested_at,
			last_issue_seen_at = excluded.last_issue_seen_at,
			last_issue_cursor = excluded.last_issue_cursor,
			last_doc_change_ingested_at = excluded.last_doc_change_ingested_at,
			last_doc_change_seen_at = excluded.last_doc_change_seen_at,
			last_doc_change_cursor = excluded.last_doc_change_cursor,
			updated_at = excluded.updated_at`,
		args...)
	return wrapDBError("merge ingestion offset", err)
}

func cursorValue(c *string) any {
	if c == nil {
		return nil
	}
	return *c
}
