package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/leynos/ghillie/internal/types"
)

const reportColumns = `id, scope, repository_id, project_id, window_start, window_end, model,
	human_text, machine_summary, latency_ms, prompt_tokens, completion_tokens, generated_at`

// SaveReport persists a report and its coverage rows atomically.
func (s *Store) SaveReport(ctx context.Context, report *types.Report, coveredFactIDs []int64) error {
	summary, err := json.Marshal(report.MachineSummary)
	if err != nil {
		return fmt.Errorf("marshal machine summary: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reports (id, scope, repository_id, project_id, window_start, window_end,
				model, human_text, machine_summary, latency_ms, prompt_tokens, completion_tokens,
				generated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.ID, string(report.Scope), nullStr(report.RepositoryID), nullStr(report.ProjectID),
			storeTime(report.WindowStart), storeTime(report.WindowEnd), report.Model,
			nullStr(report.HumanText), string(summary), report.LatencyMS,
			report.PromptTokens, report.CompletionTokens, storeTime(report.GeneratedAt))
		if err != nil {
			return wrapDBError("insert report", err)
		}

		for _, factID := range coveredFactIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO report_coverage (report_id, event_fact_id) VALUES (?, ?)`,
				report.ID, factID); err != nil {
				return wrapDBError("insert report coverage", err)
			}
		}
		return nil
	})
}

// ListRecentReports returns the newest repository-scoped reports for a
// repository, most recent first. Project-scoped reports carry a NULL
// repository_id and are never returned; window chaining for a
// repository considers only its own prior reports.
func (s *Store) ListRecentReports(ctx context.Context, repositoryID string, limit int) ([]*types.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE repository_id = ?
		ORDER BY generated_at DESC, id DESC LIMIT ?`, repositoryID, limit)
	if err != nil {
		return nil, wrapDBError("list recent reports", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate reports", err)
	}
	return out, nil
}

// GetLatestReport returns the most recent report for a repository, or
// storage.ErrNotFound.
func (s *Store) GetLatestReport(ctx context.Context, repositoryID string) (*types.Report, error) {
	reports, err := s.ListRecentReports(ctx, repositoryID, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("latest report for repository %s: %w", repositoryID, ErrNotFound)
	}
	return reports[0], nil
}

func scanReport(row rowScanner) (*types.Report, error) {
	var report types.Report
	var repositoryID, projectID, humanText sql.NullString
	var scope, windowStart, windowEnd, summary, generatedAt string

	err := row.Scan(&report.ID, &scope, &repositoryID, &projectID, &windowStart, &windowEnd,
		&report.Model, &humanText, &summary, &report.LatencyMS, &report.PromptTokens,
		&report.CompletionTokens, &generatedAt)
	if err != nil {
		return nil, wrapDBError("scan report", err)
	}

	report.Scope = types.ReportScope(scope)
	report.RepositoryID = repositoryID.String
	report.ProjectID = projectID.String
	report.HumanText = humanText.String
	if err := json.Unmarshal([]byte(summary), &report.MachineSummary); err != nil {
		return nil, fmt.Errorf("unmarshal machine summary: %w", err)
	}
	if report.WindowStart, err = parseTime(windowStart); err != nil {
		return nil, err
	}
	if report.WindowEnd, err = parseTime(windowEnd); err != nil {
		return nil, err
	}
	if report.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return nil, err
	}
	return &report, nil
}
