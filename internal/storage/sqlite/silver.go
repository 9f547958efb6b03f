package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/leynos/ghillie/internal/ids"
	"github.com/leynos/ghillie/internal/storage"
	"github.com/leynos/ghillie/internal/types"
)

// TransformTx wraps one Silver-promotion transaction. Savepoints give
// per-row isolation within the batch.
type TransformTx struct {
	tx *sql.Tx
}

// BeginTransform starts a Silver-promotion transaction.
func (s *Store) BeginTransform(ctx context.Context) (storage.TransformTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDBError("begin transform transaction", err)
	}
	return &TransformTx{tx: tx}, nil
}

// Commit commits the batch.
func (t *TransformTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return wrapDBError("commit transform batch", err)
	}
	return nil
}

// Rollback aborts the batch. Safe after Commit.
func (t *TransformTx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && err != sql.ErrTxDone {
		return wrapDBError("rollback transform batch", err)
	}
	return nil
}

// Savepoint opens a named savepoint.
func (t *TransformTx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return wrapDBError("savepoint "+name, err)
}

// Release releases a named savepoint, keeping its writes.
func (t *TransformTx) Release(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return wrapDBError("release savepoint "+name, err)
}

// RollbackTo discards writes made since the named savepoint.
func (t *TransformTx) RollbackTo(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return wrapDBError("rollback to savepoint "+name, err)
	}
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return wrapDBError("release savepoint "+name, err)
}

// GetEventFactByRawEventID fetches the fact promoted from a raw event,
// or storage.ErrNotFound.
func (t *TransformTx) GetEventFactByRawEventID(ctx context.Context, rawEventID int64) (*types.EventFact, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, raw_event_id, repo_external_id, event_type, occurred_at, payload
		FROM event_facts WHERE raw_event_id = ?`, rawEventID)
	return scanEventFact(row)
}

// InsertEventFact adds the Silver ledger row for a raw event. A unique
// violation surfaces to the caller, which rereads under the savepoint.
func (t *TransformTx) InsertEventFact(ctx context.Context, fact *types.EventFact) (*types.EventFact, error) {
	payload, err := marshalMap(fact.Payload)
	if err != nil {
		return nil, err
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO event_facts (raw_event_id, repo_external_id, event_type, occurred_at, payload)
		VALUES (?, ?, ?, ?, ?)`,
		fact.RawEventID, nullStr(fact.RepoExternalID), fact.EventType,
		storeTime(fact.OccurredAt), payload)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapDBError("event fact insert id", err)
	}
	inserted := *fact
	inserted.ID = id
	return &inserted, nil
}

// SetTransformState updates the two transform_* columns on a raw event.
// These are the only raw event columns that are ever written after insert.
func (t *TransformTx) SetTransformState(ctx context.Context, rawEventID int64, state types.TransformState, reason string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE raw_events SET transform_state = ?, transform_error = ? WHERE id = ?`,
		string(state), nullStr(reason), rawEventID)
	return wrapDBError("set transform state", err)
}

// UpsertRepository inserts or updates a repository by (owner, name)
// within the transaction.
func (t *TransformTx) UpsertRepository(ctx context.Context, repo *types.Repository) (*types.Repository, error) {
	return upsertRepository(ctx, t.tx, repo)
}

// UpsertCommit inserts or replaces a commit by SHA.
func (t *TransformTx) UpsertCommit(ctx context.Context, commit *types.Commit) error {
	metadata, err := marshalMap(commit.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO commits (sha, repository_id, message, author_name, author_email,
			authored_at, committed_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sha) DO UPDATE SET
			repository_id = excluded.repository_id,
			message = excluded.message,
			author_name = excluded.author_name,
			author_email = excluded.author_email,
			authored_at = excluded.authored_at,
			committed_at = excluded.committed_at,
			metadata = excluded.metadata`,
		commit.SHA, commit.RepositoryID, commit.Message, commit.AuthorName, commit.AuthorEmail,
		storeTime(commit.AuthoredAt), storeTime(commit.CommittedAt), metadata)
	return wrapDBError("upsert commit", err)
}

// UpsertPullRequest inserts or replaces a pull request by numeric id.
func (t *TransformTx) UpsertPullRequest(ctx context.Context, pr *types.PullRequest) error {
	labels, err := marshalStrings(pr.Labels)
	if err != nil {
		return err
	}
	metadata, err := marshalMap(pr.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO pull_requests (id, repository_id, number, title, state, labels, is_draft,
			base_ref, head_ref, created_at, updated_at, merged_at, closed_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repository_id = excluded.repository_id,
			number = excluded.number,
			title = excluded.title,
			state = excluded.state,
			labels = excluded.labels,
			is_draft = excluded.is_draft,
			base_ref = excluded.base_ref,
			head_ref = excluded.head_ref,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			merged_at = excluded.merged_at,
			closed_at = excluded.closed_at,
			metadata = excluded.metadata`,
		pr.ID, pr.RepositoryID, pr.Number, pr.Title, string(pr.State), labels, boolInt(pr.IsDraft),
		pr.BaseRef, pr.HeadRef, storeTime(pr.CreatedAt), storeTime(pr.UpdatedAt),
		storeTimePtr(pr.MergedAt), storeTimePtr(pr.ClosedAt), metadata)
	return wrapDBError("upsert pull request", err)
}

// UpsertIssue inserts or replaces an issue by numeric id.
func (t *TransformTx) UpsertIssue(ctx context.Context, issue *types.Issue) error {
	labels, err := marshalStrings(issue.Labels)
	if err != nil {
		return err
	}
	metadata, err := marshalMap(issue.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO issues (id, repository_id, number, title, state, labels,
			created_at, updated_at, closed_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repository_id = excluded.repository_id,
			number = excluded.number,
			title = excluded.title,
			state = excluded.state,
			labels = excluded.labels,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			closed_at = excluded.closed_at,
			metadata = excluded.metadata`,
		issue.ID, issue.RepositoryID, issue.Number, issue.Title, string(issue.State), labels,
		storeTime(issue.CreatedAt), storeTime(issue.UpdatedAt), storeTimePtr(issue.ClosedAt), metadata)
	return wrapDBError("upsert issue", err)
}

// UpsertDocumentationChange inserts or updates a doc change keyed by
// (commit_sha, path). When duplicates arrive the latest occurred_at wins.
func (t *TransformTx) UpsertDocumentationChange(ctx context.Context, change *types.DocumentationChange) error {
	metadata, err := marshalMap(change.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO documentation_changes (repository_id, commit_sha, path, change_type,
			is_roadmap, is_adr, occurred_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(commit_sha, path) DO UPDATE SET
			repository_id = excluded.repository_id,
			change_type = excluded.change_type,
			is_roadmap = excluded.is_roadmap,
			is_adr = excluded.is_adr,
			occurred_at = excluded.occurred_at,
			metadata = excluded.metadata
		WHERE excluded.occurred_at >= documentation_changes.occurred_at`,
		change.RepositoryID, change.CommitSHA, change.Path, change.ChangeType,
		boolInt(change.IsRoadmap), boolInt(change.IsADR), storeTime(change.OccurredAt), metadata)
	return wrapDBError("upsert documentation change", err)
}

// upsertRepository works against either the pool or a transaction.
// The Silver transform never clobbers operator-managed fields
// (ingestion_enabled, documentation_paths, estate_id) on update.
func upsertRepository(ctx context.Context, q dbtx, repo *types.Repository) (*types.Repository, error) {
	docPaths, err := marshalStrings(repo.DocumentationPaths)
	if err != nil {
		return nil, err
	}
	id := repo.ID
	if id == "" {
		id = ids.NewID()
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO repositories (id, owner, name, default_branch, ingestion_enabled,
			documentation_paths, estate_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			default_branch = CASE WHEN excluded.default_branch != '' THEN excluded.default_branch
				ELSE repositories.default_branch END`,
		id, repo.Owner, repo.Name, repo.DefaultBranch, boolInt(repo.IngestionEnabled),
		docPaths, repo.EstateID)
	if err != nil {
		return nil, wrapDBError("upsert repository", err)
	}
	return getRepository(ctx, q, repo.Owner, repo.Name)
}

// GetRepository fetches a repository by owner and name.
func (s *Store) GetRepository(ctx context.Context, owner, name string) (*types.Repository, error) {
	return getRepository(ctx, s.db, owner, name)
}

// UpsertRepository inserts or updates a repository outside any transform
// batch. Used by repository registration.
func (s *Store) UpsertRepository(ctx context.Context, repo *types.Repository) (*types.Repository, error) {
	if repo.ID != "" || repo.IngestionEnabled || len(repo.DocumentationPaths) > 0 || repo.EstateID != "" {
		// Registration path: write the operator-managed fields too.
		return s.registerRepository(ctx, repo)
	}
	return upsertRepository(ctx, s.db, repo)
}

func (s *Store) registerRepository(ctx context.Context, repo *types.Repository) (*types.Repository, error) {
	docPaths, err := marshalStrings(repo.DocumentationPaths)
	if err != nil {
		return nil, err
	}
	id := repo.ID
	if id == "" {
		id = ids.NewID()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO repositories (id, owner, name, default_branch, ingestion_enabled,
			documentation_paths, estate_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			default_branch = excluded.default_branch,
			ingestion_enabled = excluded.ingestion_enabled,
			documentation_paths = excluded.documentation_paths,
			estate_id = excluded.estate_id`,
		id, repo.Owner, repo.Name, repo.DefaultBranch, boolInt(repo.IngestionEnabled),
		docPaths, repo.EstateID)
	if err != nil {
		return nil, wrapDBError("register repository", err)
	}
	return getRepository(ctx, s.db, repo.Owner, repo.Name)
}

// ListRepositories returns every tracked repository ordered by slug.
func (s *Store) ListRepositories(ctx context.Context) ([]*types.Repository, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, name, default_branch, ingestion_enabled, documentation_paths, estate_id
		FROM repositories ORDER BY owner, name`)
	if err != nil {
		return nil, wrapDBError("list repositories", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate repositories", err)
	}
	return out, nil
}

func getRepository(ctx context.Context, q dbtx, owner, name string) (*types.Repository, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, owner, name, default_branch, ingestion_enabled, documentation_paths, estate_id
		FROM repositories WHERE owner = ? AND name = ?`, owner, name)
	return scanRepository(row)
}

func scanRepository(row rowScanner) (*types.Repository, error) {
	var repo types.Repository
	var enabled int
	var docPaths string
	err := row.Scan(&repo.ID, &repo.Owner, &repo.Name, &repo.DefaultBranch,
		&enabled, &docPaths, &repo.EstateID)
	if err != nil {
		return nil, wrapDBError("scan repository", err)
	}
	repo.IngestionEnabled = enabled != 0
	if repo.DocumentationPaths, err = unmarshalStrings(docPaths); err != nil {
		return nil, err
	}
	return &repo, nil
}

// ListUncoveredEventFacts returns facts for the repo inside the
// half-open window [Start, End) that no prior in-scope report covers.
func (s *Store) ListUncoveredEventFacts(ctx context.Context, q storage.FactWindowQuery) ([]*types.EventFact, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT f.id, f.raw_event_id, f.repo_external_id, f.event_type, f.occurred_at, f.payload
		FROM event_facts f
		WHERE f.repo_external_id = ?
		  AND f.occurred_at >= ? AND f.occurred_at < ?
		  AND NOT EXISTS (
			SELECT 1 FROM report_coverage rc
			JOIN reports r ON r.id = rc.report_id
			WHERE rc.event_fact_id = f.id AND (r.repository_id = ?`)
	args := []any{q.RepoExternalID, storeTime(q.Start), storeTime(q.End), q.RepositoryID}
	if len(q.ProjectIDs) > 0 {
		sb.WriteString(` OR r.project_id IN (` +
			strings.TrimSuffix(strings.Repeat("?,", len(q.ProjectIDs)), ",") + `)`)
		for _, id := range q.ProjectIDs {
			args = append(args, id)
		}
	}
	sb.WriteString(`))
		ORDER BY f.occurred_at ASC, f.id ASC`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrapDBError("list uncovered event facts", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.EventFact
	for rows.Next() {
		fact, err := scanEventFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate event facts", err)
	}
	return out, nil
}

func scanEventFact(row rowScanner) (*types.EventFact, error) {
	var fact types.EventFact
	var repoExternalID sql.NullString
	var occurredAt, payload string
	err := row.Scan(&fact.ID, &fact.RawEventID, &repoExternalID, &fact.EventType, &occurredAt, &payload)
	if err != nil {
		return nil, wrapDBError("scan event fact", err)
	}
	fact.RepoExternalID = repoExternalID.String
	if fact.OccurredAt, err = parseTime(occurredAt); err != nil {
		return nil, err
	}
	if fact.Payload, err = unmarshalPayload(payload); err != nil {
		return nil, err
	}
	return &fact, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
