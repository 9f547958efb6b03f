// Package types defines the core data model for the medallion pipeline:
// Bronze raw events and ingestion offsets, Silver event facts and typed
// entities, and Gold reports with coverage.
package types

import (
	"encoding/json"
	"time"
)

// TransformState tracks the Silver-promotion lifecycle of a raw event.
type TransformState string

const (
	TransformPending   TransformState = "PENDING"
	TransformProcessed TransformState = "PROCESSED"
	TransformFailed    TransformState = "FAILED"
)

// Event type identifiers emitted by the GitHub source client.
const (
	EventTypeCommit      = "github.commit"
	EventTypePullRequest = "github.pull_request"
	EventTypeIssue       = "github.issue"
	EventTypeDocChange   = "github.doc_change"
)

// EntityKind identifies one of the four ingestion streams tracked per
// repository. Each kind carries its own watermark, seen-high and resume
// cursor on the ingestion offset row.
type EntityKind string

const (
	KindCommit      EntityKind = "commit"
	KindPullRequest EntityKind = "pull_request"
	KindIssue       EntityKind = "issue"
	KindDocChange   EntityKind = "doc_change"
)

// AllKinds lists every entity kind in processing order.
var AllKinds = []EntityKind{KindCommit, KindPullRequest, KindIssue, KindDocChange}

// RawEvent is an append-only Bronze record of an external event payload.
// Rows are never updated except for the transform_* fields.
type RawEvent struct {
	ID             int64
	SourceSystem   string
	SourceEventID  string
	EventType      string
	RepoExternalID string
	OccurredAt     time.Time
	IngestedAt     time.Time
	DedupeKey      string
	Payload        map[string]any
	TransformState TransformState
	TransformError string
}

// IngestionOffset is the per-repository cursor state for one source
// system. A non-null resume cursor freezes the corresponding watermark
// until the backlog is drained.
type IngestionOffset struct {
	RepoExternalID string
	Kinds          map[EntityKind]KindOffset
	UpdatedAt      time.Time
}

// KindOffset holds the watermark, seen-high and resume cursor for one
// entity kind.
type KindOffset struct {
	LastIngestedAt *time.Time
	LastSeenAt     *time.Time
	LastCursor     *string
}

// NewIngestionOffset returns an empty offset row for a repository.
func NewIngestionOffset(repoExternalID string) *IngestionOffset {
	kinds := make(map[EntityKind]KindOffset, len(AllKinds))
	for _, k := range AllKinds {
		kinds[k] = KindOffset{}
	}
	return &IngestionOffset{RepoExternalID: repoExternalID, Kinds: kinds}
}

// EventFact is the Silver ledger row: exactly one per promoted RawEvent,
// carrying a deep copy of the Bronze payload.
type EventFact struct {
	ID             int64
	RawEventID     int64
	RepoExternalID string
	EventType      string
	OccurredAt     time.Time
	Payload        map[string]any
}

// Repository is a tracked source repository.
type Repository struct {
	ID                 string
	Owner              string
	Name               string
	DefaultBranch      string
	IngestionEnabled   bool
	DocumentationPaths []string
	EstateID           string
}

// Slug returns the external "owner/name" identifier.
func (r *Repository) Slug() string {
	return r.Owner + "/" + r.Name
}

// Commit is a Silver typed entity keyed by SHA.
type Commit struct {
	SHA          string
	RepositoryID string
	Message      string
	AuthorName   string
	AuthorEmail  string
	AuthoredAt   time.Time
	CommittedAt  time.Time
	Metadata     map[string]any
}

// PullRequestState enumerates pull request states.
type PullRequestState string

const (
	PRStateOpen   PullRequestState = "open"
	PRStateClosed PullRequestState = "closed"
	PRStateMerged PullRequestState = "merged"
)

// PullRequest is a Silver typed entity keyed by the provider's numeric id.
type PullRequest struct {
	ID           int64
	RepositoryID string
	Number       int
	Title        string
	State        PullRequestState
	Labels       []string
	IsDraft      bool
	BaseRef      string
	HeadRef      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MergedAt     *time.Time
	ClosedAt     *time.Time
	Metadata     map[string]any
}

// IssueState enumerates issue states.
type IssueState string

const (
	IssueStateOpen   IssueState = "open"
	IssueStateClosed IssueState = "closed"
)

// Issue is a Silver typed entity keyed by the provider's numeric id.
type Issue struct {
	ID           int64
	RepositoryID string
	Number       int
	Title        string
	State        IssueState
	Labels       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
	Metadata     map[string]any
}

// DocumentationChange records one touched documentation path within a
// commit. Unique on (commit_sha, path); duplicates keep the latest
// metadata and occurred_at.
type DocumentationChange struct {
	ID           int64
	RepositoryID string
	CommitSHA    string
	Path         string
	ChangeType   string
	IsRoadmap    bool
	IsADR        bool
	OccurredAt   time.Time
	Metadata     map[string]any
}

// ReportScope distinguishes repository-level from project-level reports.
type ReportScope string

const (
	ScopeRepository ReportScope = "REPOSITORY"
	ScopeProject    ReportScope = "PROJECT"
)

// ReportStatus is the coarse health signal carried by a report.
type ReportStatus string

const (
	StatusOnTrack ReportStatus = "on_track"
	StatusAtRisk  ReportStatus = "at_risk"
	StatusBlocked ReportStatus = "blocked"
	StatusUnknown ReportStatus = "unknown"
)

// MachineSummary is the machine-readable half of a report.
type MachineSummary struct {
	Status     ReportStatus `json:"status"`
	Summary    string       `json:"summary"`
	Highlights []string     `json:"highlights"`
	Risks      []string     `json:"risks"`
	NextSteps  []string     `json:"next_steps"`
}

// Report is a Gold record produced by the reporting service. Exactly one
// of RepositoryID / ProjectID is set, matching Scope.
type Report struct {
	ID               string
	Scope            ReportScope
	RepositoryID     string
	ProjectID        string
	WindowStart      time.Time
	WindowEnd        time.Time
	Model            string
	HumanText        string
	MachineSummary   MachineSummary
	LatencyMS        int64
	PromptTokens     int64
	CompletionTokens int64
	GeneratedAt      time.Time
}

// ClonePayload deep-copies a JSON-shaped payload by round-tripping it
// through encoding/json. Bronze and Silver rows must never share payload
// maps with their callers.
func ClonePayload(payload map[string]any) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
