package sqlite

import "context"

// Row-count helpers used by diagnostics and tests.

func (s *Store) CountRawEvents(ctx context.Context) (int, error) {
	return s.countTable(ctx, `SELECT COUNT(*) FROM raw_events`)
}

func (s *Store) CountEventFacts(ctx context.Context) (int, error) {
	return s.countTable(ctx, `SELECT COUNT(*) FROM event_facts`)
}

func (s *Store) CountCommits(ctx context.Context) (int, error) {
	return s.countTable(ctx, `SELECT COUNT(*) FROM commits`)
}

func (s *Store) CountPullRequests(ctx context.Context) (int, error) {
	return s.countTable(ctx, `SELECT COUNT(*) FROM pull_requests`)
}

func (s *Store) CountIssues(ctx context.Context) (int, error) {
	return s.countTable(ctx, `SELECT COUNT(*) FROM issues`)
}

func (s *Store) CountDocumentationChanges(ctx context.Context) (int, error) {
	return s.countTable(ctx, `SELECT COUNT(*) FROM documentation_changes`)
}

func (s *Store) countTable(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, wrapDBError("count rows", err)
	}
	return n, nil
}
