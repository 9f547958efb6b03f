package sqlite

const schema = `
-- Bronze: append-only raw event payloads.
-- Rows are never updated except for the transform_* columns.
CREATE TABLE IF NOT EXISTS raw_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_system TEXT NOT NULL,
    source_event_id TEXT,
    event_type TEXT NOT NULL,
    repo_external_id TEXT,
    occurred_at TEXT NOT NULL,
    ingested_at TEXT NOT NULL,
    dedupe_key TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}',
    transform_state TEXT NOT NULL DEFAULT 'PENDING'
        CHECK(transform_state IN ('PENDING', 'PROCESSED', 'FAILED')),
    transform_error TEXT,
    UNIQUE (source_system, dedupe_key)
);

CREATE INDEX IF NOT EXISTS idx_raw_events_transform_state ON raw_events(transform_state);
CREATE INDEX IF NOT EXISTS idx_raw_events_repo_occurred ON raw_events(repo_external_id, occurred_at);

-- Per-repository ingestion cursors, one row per repo. A non-null cursor
-- freezes the matching watermark until the backlog drains.
CREATE TABLE IF NOT EXISTS github_ingestion_offsets (
    repo_external_id TEXT PRIMARY KEY,
    last_commit_ingested_at TEXT,
    last_commit_seen_at TEXT,
    last_commit_cursor TEXT,
    last_pull_request_ingested_at TEXT,
    last_pull_request_seen_at TEXT,
    last_pull_request_cursor TEXT,
    last_issue_ingested_at TEXT,
    last_issue_seen_at TEXT,
    last_issue_cursor TEXT,
    last_doc_change_ingested_at TEXT,
    last_doc_change_seen_at TEXT,
    last_doc_change_cursor TEXT,
    updated_at TEXT NOT NULL
);

-- Silver: exactly one fact per promoted raw event.
CREATE TABLE IF NOT EXISTS event_facts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    raw_event_id INTEGER NOT NULL UNIQUE,
    repo_external_id TEXT,
    event_type TEXT NOT NULL,
    occurred_at TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (raw_event_id) REFERENCES raw_events(id)
);

CREATE INDEX IF NOT EXISTS idx_event_facts_repo_occurred ON event_facts(repo_external_id, occurred_at);

CREATE TABLE IF NOT EXISTS repositories (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    default_branch TEXT NOT NULL DEFAULT 'main',
    ingestion_enabled INTEGER NOT NULL DEFAULT 1,
    documentation_paths TEXT NOT NULL DEFAULT '[]',
    estate_id TEXT NOT NULL DEFAULT '',
    UNIQUE (owner, name)
);

CREATE TABLE IF NOT EXISTS commits (
    sha TEXT PRIMARY KEY,
    repository_id TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    author_name TEXT NOT NULL DEFAULT '',
    author_email TEXT NOT NULL DEFAULT '',
    authored_at TEXT,
    committed_at TEXT,
    metadata TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (repository_id) REFERENCES repositories(id)
);

CREATE INDEX IF NOT EXISTS idx_commits_repository ON commits(repository_id);

CREATE TABLE IF NOT EXISTS pull_requests (
    id INTEGER PRIMARY KEY,
    repository_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT 'open' CHECK(state IN ('open', 'closed', 'merged')),
    labels TEXT NOT NULL DEFAULT '[]',
    is_draft INTEGER NOT NULL DEFAULT 0,
    base_ref TEXT NOT NULL DEFAULT '',
    head_ref TEXT NOT NULL DEFAULT '',
    created_at TEXT,
    updated_at TEXT,
    merged_at TEXT,
    closed_at TEXT,
    metadata TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (repository_id) REFERENCES repositories(id)
);

CREATE INDEX IF NOT EXISTS idx_pull_requests_repository ON pull_requests(repository_id);

CREATE TABLE IF NOT EXISTS issues (
    id INTEGER PRIMARY KEY,
    repository_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT 'open' CHECK(state IN ('open', 'closed')),
    labels TEXT NOT NULL DEFAULT '[]',
    created_at TEXT,
    updated_at TEXT,
    closed_at TEXT,
    metadata TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (repository_id) REFERENCES repositories(id)
);

CREATE INDEX IF NOT EXISTS idx_issues_repository ON issues(repository_id);

CREATE TABLE IF NOT EXISTS documentation_changes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repository_id TEXT NOT NULL,
    commit_sha TEXT NOT NULL,
    path TEXT NOT NULL,
    change_type TEXT NOT NULL DEFAULT '',
    is_roadmap INTEGER NOT NULL DEFAULT 0,
    is_adr INTEGER NOT NULL DEFAULT 0,
    occurred_at TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    UNIQUE (commit_sha, path),
    FOREIGN KEY (repository_id) REFERENCES repositories(id)
);

-- Gold: generated reports. Scope and subject must agree.
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    scope TEXT NOT NULL CHECK(scope IN ('REPOSITORY', 'PROJECT')),
    repository_id TEXT,
    project_id TEXT,
    window_start TEXT NOT NULL,
    window_end TEXT NOT NULL,
    model TEXT NOT NULL,
    human_text TEXT,
    machine_summary TEXT NOT NULL DEFAULT '{}',
    latency_ms INTEGER NOT NULL DEFAULT 0,
    prompt_tokens INTEGER NOT NULL DEFAULT 0,
    completion_tokens INTEGER NOT NULL DEFAULT 0,
    generated_at TEXT NOT NULL,
    CHECK (
        (scope = 'REPOSITORY' AND repository_id IS NOT NULL AND project_id IS NULL) OR
        (scope = 'PROJECT' AND project_id IS NOT NULL AND repository_id IS NULL)
    )
);

CREATE INDEX IF NOT EXISTS idx_reports_repository ON reports(repository_id, generated_at);

-- Join from a report to the facts it consumed. Additive per scope and
-- subject; the evidence bundler excludes covered facts on later windows.
CREATE TABLE IF NOT EXISTS report_coverage (
    report_id TEXT NOT NULL,
    event_fact_id INTEGER NOT NULL,
    PRIMARY KEY (report_id, event_fact_id),
    FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE,
    FOREIGN KEY (event_fact_id) REFERENCES event_facts(id)
);

CREATE INDEX IF NOT EXISTS idx_report_coverage_fact ON report_coverage(event_fact_id);
`
