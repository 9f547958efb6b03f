package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leynos/ghillie/internal/bronze"
	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/evidence"
	"github.com/leynos/ghillie/internal/report"
	"github.com/leynos/ghillie/internal/server"
	"github.com/leynos/ghillie/internal/silver"
	"github.com/leynos/ghillie/internal/status"
	"github.com/leynos/ghillie/internal/storage/sqlite"
	"github.com/leynos/ghillie/internal/types"
)

var serverNow = time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clk := clock.At(serverNow)
	service, err := report.NewService(store,
		evidence.NewBundler(store, nil, clk),
		status.NewMock(), nil, clk,
		report.Config{WindowDays: 7})
	require.NoError(t, err)

	srv := server.NewServer(server.Config{Reports: service, Clock: clk})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func seedCommit(t *testing.T, store *sqlite.Store, repo, sha string, at time.Time) {
	t.Helper()
	writer := bronze.NewWriter(store, clock.At(serverNow))
	_, _, err := writer.Ingest(context.Background(), bronze.Envelope{
		SourceSystem:   "github",
		EventType:      types.EventTypeCommit,
		SourceEventID:  sha,
		RepoExternalID: repo,
		OccurredAt:     at,
		Payload: map[string]any{
			"sha": sha, "message": "feat: ship it", "default_branch": "main",
		},
	})
	require.NoError(t, err)
	stats, err := silver.NewTransformer(store).ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, stats.Failed)
}

func TestHealthAndReadyProbes(t *testing.T) {
	ts, _ := newTestServer(t)

	for path, want := range map[string]string{"/health": "ok", "/ready": "ready"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		_ = resp.Body.Close()
		assert.Equal(t, want, body["status"])
	}
}

func TestGenerateReportReturnsMetadata(t *testing.T) {
	ts, store := newTestServer(t)
	seedCommit(t, store, "acme/widgets", "c1", serverNow.Add(-48*time.Hour))

	resp, err := http.Post(ts.URL+"/reports/repositories/acme/widgets", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body server.ReportResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.ReportID)
	assert.Equal(t, "acme/widgets", body.Repository)
	assert.Equal(t, serverNow.Format(time.RFC3339), body.WindowEnd)
	assert.Equal(t, status.MockName, body.Model)
	assert.Equal(t, string(types.StatusOnTrack), body.Status)
}

func TestGenerateReportNoEventsIs204(t *testing.T) {
	ts, store := newTestServer(t)
	seedCommit(t, store, "empty/repo", "c1", serverNow.Add(-30*24*time.Hour))

	resp, err := http.Post(ts.URL+"/reports/repositories/empty/repo", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestGenerateReportUnknownRepoIs404(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/reports/repositories/no/such", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem server.Problem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.NotEmpty(t, problem.Title)
	assert.NotEmpty(t, problem.Description)
}

func TestGenerateReportBadPathIs400(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/reports/repositories/justowner", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateReportRequiresPost(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/reports/repositories/acme/widgets")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthOnlyModeIs503(t *testing.T) {
	srv := server.NewServer(server.Config{Reports: nil, Clock: clock.At(serverNow)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/reports/repositories/acme/widgets", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
