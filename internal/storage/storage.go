// Package storage defines the persistence interface for the medallion
// pipeline. The sqlite subpackage provides the concrete backend.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/leynos/ghillie/internal/types"
)

// ErrNotFound is returned when a requested row does not exist. Callers
// branch on it with errors.Is regardless of backend.
var ErrNotFound = errors.New("not found")

// FactWindowQuery selects event facts for a repository within a
// half-open window, excluding facts already covered by prior in-scope
// reports (repository-scoped reports on the same repository, and
// project-scoped reports on any of the listed projects).
type FactWindowQuery struct {
	RepoExternalID string
	RepositoryID   string
	ProjectIDs     []string
	Start          time.Time
	End            time.Time
}

// Storage is the full persistence surface consumed by the pipeline
// components. One implementation per backend; all timestamps are UTC.
type Storage interface {
	// Bronze
	InsertRawEvent(ctx context.Context, ev *types.RawEvent) (*types.RawEvent, bool, error)
	GetRawEventByID(ctx context.Context, id int64) (*types.RawEvent, error)
	ListPendingRawEvents(ctx context.Context, afterID int64, limit int) ([]*types.RawEvent, error)
	ListRawEventsByIDs(ctx context.Context, ids []int64) ([]*types.RawEvent, error)
	GetIngestionOffset(ctx context.Context, repoExternalID string) (*types.IngestionOffset, error)
	MergeIngestionOffset(ctx context.Context, offset *types.IngestionOffset) error
	ListIngestionOffsets(ctx context.Context) ([]*types.IngestionOffset, error)

	// Silver
	BeginTransform(ctx context.Context) (TransformTx, error)
	GetRepository(ctx context.Context, owner, name string) (*types.Repository, error)
	ListRepositories(ctx context.Context) ([]*types.Repository, error)
	UpsertRepository(ctx context.Context, repo *types.Repository) (*types.Repository, error)
	ListUncoveredEventFacts(ctx context.Context, q FactWindowQuery) ([]*types.EventFact, error)

	// Gold
	SaveReport(ctx context.Context, report *types.Report, coveredFactIDs []int64) error
	ListRecentReports(ctx context.Context, repositoryID string, limit int) ([]*types.Report, error)
	GetLatestReport(ctx context.Context, repositoryID string) (*types.Report, error)

	Close() error
}

// TransformTx is a Silver-promotion transaction. Per-row isolation uses
// savepoints so one failed row cannot abort earlier rows in the batch.
type TransformTx interface {
	GetEventFactByRawEventID(ctx context.Context, rawEventID int64) (*types.EventFact, error)
	InsertEventFact(ctx context.Context, fact *types.EventFact) (*types.EventFact, error)
	UpsertRepository(ctx context.Context, repo *types.Repository) (*types.Repository, error)
	UpsertCommit(ctx context.Context, commit *types.Commit) error
	UpsertPullRequest(ctx context.Context, pr *types.PullRequest) error
	UpsertIssue(ctx context.Context, issue *types.Issue) error
	UpsertDocumentationChange(ctx context.Context, change *types.DocumentationChange) error
	SetTransformState(ctx context.Context, rawEventID int64, state types.TransformState, reason string) error

	Savepoint(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Commit() error
	Rollback() error
}
