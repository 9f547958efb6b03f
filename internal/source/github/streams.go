package github

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/leynos/ghillie/internal/source"
	"github.com/leynos/ghillie/internal/types"
)

// fetchPage loads one page of events resuming after the given cursor.
type fetchPage func(ctx context.Context, after string) (events []*source.Event, next string, hasNext bool, err error)

// pagedStream drives a page fetcher lazily, yielding buffered events
// and loading the next page on demand. An optional stop predicate ends
// the stream at the first matching event without yielding it (the
// client-side since bound for update-ordered queries).
type pagedStream struct {
	fetch   fetchPage
	stop    func(*source.Event) bool
	buf     []*source.Event
	after   string
	hasNext bool
	started bool
	done    bool
}

func (s *pagedStream) Next(ctx context.Context) (*source.Event, bool, error) {
	for {
		if s.done {
			return nil, false, nil
		}
		if len(s.buf) == 0 {
			if s.started && !s.hasNext {
				s.done = true
				return nil, false, nil
			}
			events, next, hasNext, err := s.fetch(ctx, s.after)
			if err != nil {
				s.done = true
				return nil, false, err
			}
			s.started = true
			s.buf = events
			s.after = next
			s.hasNext = hasNext
			if len(events) == 0 && !hasNext {
				s.done = true
				return nil, false, nil
			}
			continue
		}
		ev := s.buf[0]
		s.buf = s.buf[1:]
		if s.stop != nil && s.stop(ev) {
			s.done = true
			return nil, false, nil
		}
		return ev, true, nil
	}
}

// Commits streams commits on the default branch committed at or after
// since, most recent first.
func (c *Client) Commits(ctx context.Context, repo *types.Repository, since time.Time, after string) source.Stream {
	return c.commitHistory(repo, since, after, "", func(node commitNode, cursor string) *source.Event {
		return commitEvent(repo, node, cursor)
	})
}

// DocChanges streams commits touching one documentation path, mapped to
// one doc-change event per touched path.
func (c *Client) DocChanges(ctx context.Context, repo *types.Repository, path string, since time.Time, after string) source.Stream {
	return c.commitHistory(repo, since, after, path, func(node commitNode, cursor string) *source.Event {
		return docChangeEvent(repo, node, path, cursor)
	})
}

func (c *Client) commitHistory(repo *types.Repository, since time.Time, after, path string, mk func(commitNode, string) *source.Event) source.Stream {
	return &pagedStream{
		after: after,
		fetch: func(ctx context.Context, cursor string) ([]*source.Event, string, bool, error) {
			variables := map[string]any{
				"owner": repo.Owner,
				"name":  repo.Name,
				"ref":   "refs/heads/" + defaultBranch(repo),
				"first": pageSize,
			}
			if !since.IsZero() {
				variables["since"] = since.UTC().Format(time.RFC3339)
			}
			if path != "" {
				variables["path"] = path
			}
			if cursor != "" {
				variables["after"] = cursor
			}

			var data commitHistoryData
			if err := c.doQuery(ctx, commitHistoryQuery, variables, &data); err != nil {
				return nil, "", false, err
			}
			if data.Repository == nil {
				return nil, "", false, &source.ShapeError{Field: "repository"}
			}
			if data.Repository.Ref == nil || data.Repository.Ref.Target == nil {
				// Branch missing or empty repo: nothing to stream.
				return nil, "", false, nil
			}
			history := data.Repository.Ref.Target.History
			if history == nil {
				return nil, "", false, &source.ShapeError{Field: "repository.ref.target.history"}
			}

			events := make([]*source.Event, 0, len(history.Edges))
			for _, edge := range history.Edges {
				if edge.Node.OID == "" {
					return nil, "", false, &source.ShapeError{Field: "history.edges.node.oid"}
				}
				events = append(events, mk(edge.Node, edge.Cursor))
			}
			return events, history.PageInfo.EndCursor, history.PageInfo.HasNextPage, nil
		},
	}
}

// PullRequests streams pull requests by update time descending, ending
// at the first one updated at or before since.
func (c *Client) PullRequests(ctx context.Context, repo *types.Repository, since time.Time, after string) source.Stream {
	return &pagedStream{
		after: after,
		stop:  sinceStop(since),
		fetch: func(ctx context.Context, cursor string) ([]*source.Event, string, bool, error) {
			variables := map[string]any{"owner": repo.Owner, "name": repo.Name, "first": pageSize}
			if cursor != "" {
				variables["after"] = cursor
			}

			var data pullRequestsData
			if err := c.doQuery(ctx, pullRequestsQuery, variables, &data); err != nil {
				return nil, "", false, err
			}
			if data.Repository == nil {
				return nil, "", false, &source.ShapeError{Field: "repository"}
			}
			prs := data.Repository.PullRequests
			if prs == nil {
				return nil, "", false, &source.ShapeError{Field: "repository.pullRequests"}
			}

			events := make([]*source.Event, 0, len(prs.Edges))
			for _, edge := range prs.Edges {
				if edge.Node.DatabaseID == nil {
					return nil, "", false, &source.ShapeError{Field: "pullRequests.edges.node.databaseId"}
				}
				events = append(events, pullRequestEvent(edge.Node, edge.Cursor))
			}
			return events, prs.PageInfo.EndCursor, prs.PageInfo.HasNextPage, nil
		},
	}
}

// Issues streams issues by update time descending, ending at the first
// one updated at or before since.
func (c *Client) Issues(ctx context.Context, repo *types.Repository, since time.Time, after string) source.Stream {
	return &pagedStream{
		after: after,
		stop:  sinceStop(since),
		fetch: func(ctx context.Context, cursor string) ([]*source.Event, string, bool, error) {
			variables := map[string]any{"owner": repo.Owner, "name": repo.Name, "first": pageSize}
			if cursor != "" {
				variables["after"] = cursor
			}

			var data issuesData
			if err := c.doQuery(ctx, issuesQuery, variables, &data); err != nil {
				return nil, "", false, err
			}
			if data.Repository == nil {
				return nil, "", false, &source.ShapeError{Field: "repository"}
			}
			issues := data.Repository.Issues
			if issues == nil {
				return nil, "", false, &source.ShapeError{Field: "repository.issues"}
			}

			events := make([]*source.Event, 0, len(issues.Edges))
			for _, edge := range issues.Edges {
				if edge.Node.DatabaseID == nil {
					return nil, "", false, &source.ShapeError{Field: "issues.edges.node.databaseId"}
				}
				events = append(events, issueEvent(edge.Node, edge.Cursor))
			}
			return events, issues.PageInfo.EndCursor, issues.PageInfo.HasNextPage, nil
		},
	}
}

// sinceStop ends an update-ordered stream at the first event whose
// occurred_at is at or before since.
func sinceStop(since time.Time) func(*source.Event) bool {
	if since.IsZero() {
		return nil
	}
	return func(ev *source.Event) bool {
		return !ev.OccurredAt.After(since)
	}
}

func defaultBranch(repo *types.Repository) string {
	if repo.DefaultBranch != "" {
		return repo.DefaultBranch
	}
	return "main"
}

func commitEvent(repo *types.Repository, node commitNode, cursor string) *source.Event {
	var authorName, authorEmail string
	if node.Author != nil {
		authorName = node.Author.Name
		authorEmail = node.Author.Email
	}
	return &source.Event{
		EventType:     types.EventTypeCommit,
		SourceEventID: node.OID,
		OccurredAt:    node.CommittedDate.UTC(),
		Cursor:        cursor,
		Payload: map[string]any{
			"sha":            node.OID,
			"message":        node.Message,
			"author_name":    authorName,
			"author_email":   authorEmail,
			"authored_at":    node.AuthoredDate.UTC().Format(time.RFC3339),
			"committed_at":   node.CommittedDate.UTC().Format(time.RFC3339),
			"default_branch": defaultBranch(repo),
		},
	}
}

func docChangeEvent(repo *types.Repository, node commitNode, path string, cursor string) *source.Event {
	isRoadmap, isADR := source.ClassifyDocPath(path)
	return &source.Event{
		EventType:     types.EventTypeDocChange,
		SourceEventID: node.OID + ":" + path,
		OccurredAt:    node.CommittedDate.UTC(),
		Cursor:        cursor,
		Payload: map[string]any{
			"commit_sha":     node.OID,
			"path":           path,
			"change_type":    "modified",
			"is_roadmap":     isRoadmap,
			"is_adr":         isADR,
			"message":        node.Message,
			"occurred_at":    node.CommittedDate.UTC().Format(time.RFC3339),
			"default_branch": defaultBranch(repo),
		},
	}
}

func pullRequestEvent(node pullRequestNode, cursor string) *source.Event {
	var author string
	if node.Author != nil {
		author = node.Author.Login
	}
	payload := map[string]any{
		"id":         *node.DatabaseID,
		"number":     node.Number,
		"title":      node.Title,
		"state":      strings.ToLower(node.State),
		"labels":     node.Labels.names(),
		"is_draft":   node.IsDraft,
		"base_ref":   node.BaseRefName,
		"head_ref":   node.HeadRefName,
		"author":     author,
		"created_at": node.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": node.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if node.MergedAt != nil {
		payload["merged_at"] = node.MergedAt.UTC().Format(time.RFC3339)
	}
	if node.ClosedAt != nil {
		payload["closed_at"] = node.ClosedAt.UTC().Format(time.RFC3339)
	}
	return &source.Event{
		EventType:     types.EventTypePullRequest,
		SourceEventID: strconv.FormatInt(*node.DatabaseID, 10),
		OccurredAt:    node.UpdatedAt.UTC(),
		Cursor:        cursor,
		Payload:       payload,
	}
}

func issueEvent(node issueNode, cursor string) *source.Event {
	var author string
	if node.Author != nil {
		author = node.Author.Login
	}
	payload := map[string]any{
		"id":         *node.DatabaseID,
		"number":     node.Number,
		"title":      node.Title,
		"state":      strings.ToLower(node.State),
		"labels":     node.Labels.names(),
		"author":     author,
		"created_at": node.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": node.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if node.ClosedAt != nil {
		payload["closed_at"] = node.ClosedAt.UTC().Format(time.RFC3339)
	}
	return &source.Event{
		EventType:     types.EventTypeIssue,
		SourceEventID: strconv.FormatInt(*node.DatabaseID, 10),
		OccurredAt:    node.UpdatedAt.UTC(),
		Cursor:        cursor,
		Payload:       payload,
	}
}
