package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/leynos/ghillie/internal/evidence"
)

// systemPrompt fixes the JSON contract LLM backends must honour.
const systemPrompt = `You are a software delivery analyst. Given a JSON digest of one
repository's recent activity, produce a concise status report.

Respond with a single JSON object and nothing else, using exactly these
keys:
{"summary": string, "status": "on_track"|"at_risk"|"blocked"|"unknown",
 "highlights": [string], "risks": [string], "next_steps": [string]}

Keep each list to at most five items. Base every claim on the digest.`

// bundleDigest is the compact activity view sent to LLM backends.
type bundleDigest struct {
	Repository  string              `json:"repository"`
	WindowStart time.Time           `json:"window_start"`
	WindowEnd   time.Time           `json:"window_end"`
	EventCount  int                 `json:"event_count"`
	Commits     []digestCommit      `json:"commits,omitempty"`
	PullReqs    []digestItem        `json:"pull_requests,omitempty"`
	Issues      []digestItem        `json:"issues,omitempty"`
	DocChanges  []digestDoc         `json:"doc_changes,omitempty"`
	Groupings   []digestGrouping    `json:"work_type_groupings,omitempty"`
	Previous    []digestPrevSummary `json:"previous_reports,omitempty"`
}

type digestCommit struct {
	Message       string `json:"message"`
	WorkType      string `json:"work_type"`
	IsMergeCommit bool   `json:"is_merge_commit,omitempty"`
}

type digestItem struct {
	Title    string   `json:"title"`
	State    string   `json:"state"`
	Labels   []string `json:"labels,omitempty"`
	WorkType string   `json:"work_type"`
}

type digestDoc struct {
	Path      string `json:"path"`
	IsRoadmap bool   `json:"is_roadmap,omitempty"`
	IsADR     bool   `json:"is_adr,omitempty"`
}

type digestGrouping struct {
	WorkType string `json:"work_type"`
	Total    int    `json:"total"`
	Open     int    `json:"open_issues,omitempty"`
}

type digestPrevSummary struct {
	Status     string   `json:"status"`
	Highlights []string `json:"highlights,omitempty"`
	Risks      []string `json:"risks,omitempty"`
}

// buildUserPrompt serializes the bundle digest for a model request.
func buildUserPrompt(bundle *evidence.Bundle) (string, error) {
	digest := bundleDigest{
		Repository:  bundle.Repository.Slug(),
		WindowStart: bundle.WindowStart,
		WindowEnd:   bundle.WindowEnd,
		EventCount:  bundle.TotalEventCount(),
	}
	for _, c := range bundle.Commits {
		digest.Commits = append(digest.Commits, digestCommit{
			Message: c.Message, WorkType: string(c.WorkType), IsMergeCommit: c.IsMergeCommit,
		})
	}
	for _, pr := range bundle.PullRequests {
		digest.PullReqs = append(digest.PullReqs, digestItem{
			Title: pr.Title, State: pr.State, Labels: pr.Labels, WorkType: string(pr.WorkType),
		})
	}
	for _, issue := range bundle.Issues {
		digest.Issues = append(digest.Issues, digestItem{
			Title: issue.Title, State: issue.State, Labels: issue.Labels, WorkType: string(issue.WorkType),
		})
	}
	for _, doc := range bundle.DocChanges {
		digest.DocChanges = append(digest.DocChanges, digestDoc{
			Path: doc.Path, IsRoadmap: doc.IsRoadmap, IsADR: doc.IsADR,
		})
	}
	for _, g := range bundle.WorkTypeGroupings {
		digest.Groupings = append(digest.Groupings, digestGrouping{
			WorkType: string(g.WorkType), Total: g.Total(), Open: g.OpenIssueCount,
		})
	}
	for _, prev := range bundle.PreviousReports {
		digest.Previous = append(digest.Previous, digestPrevSummary{
			Status: string(prev.Status), Highlights: prev.Highlights, Risks: prev.Risks,
		})
	}

	raw, err := json.Marshal(digest)
	if err != nil {
		return "", fmt.Errorf("marshal bundle digest: %w", err)
	}
	return string(raw), nil
}

// modelResult is the strict JSON contract parsed from model output.
type modelResult struct {
	Summary    string   `json:"summary"`
	Status     string   `json:"status"`
	Highlights []string `json:"highlights"`
	Risks      []string `json:"risks"`
	NextSteps  []string `json:"next_steps"`
}

// parseModelContent parses strict-JSON model output into a Result.
// Unknown status strings map to unknown; non-JSON content is a shape
// error.
func parseModelContent(content string) (*Result, error) {
	var parsed modelResult
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, &ShapeError{Reason: "content is not valid JSON"}
	}
	result := &Result{
		Summary:    parsed.Summary,
		Status:     parseStatus(parsed.Status),
		Highlights: parsed.Highlights,
		Risks:      parsed.Risks,
		NextSteps:  parsed.NextSteps,
	}
	if result.Highlights == nil {
		result.Highlights = []string{}
	}
	if result.Risks == nil {
		result.Risks = []string{}
	}
	if result.NextSteps == nil {
		result.NextSteps = []string{}
	}
	capLists(result)
	return result, nil
}
