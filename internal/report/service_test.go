package report_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leynos/ghillie/internal/bronze"
	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/evidence"
	"github.com/leynos/ghillie/internal/ids"
	"github.com/leynos/ghillie/internal/report"
	"github.com/leynos/ghillie/internal/silver"
	"github.com/leynos/ghillie/internal/status"
	"github.com/leynos/ghillie/internal/storage"
	"github.com/leynos/ghillie/internal/storage/sqlite"
	"github.com/leynos/ghillie/internal/types"
)

var reportNow = time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store   *sqlite.Store
	writer  *bronze.Writer
	service *report.Service
	sinkDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clk := clock.At(reportNow)
	sinkDir := filepath.Join(t.TempDir(), "sink")
	service, err := report.NewService(store,
		evidence.NewBundler(store, nil, clk),
		status.NewMock(),
		report.NewFilesystemSink(sinkDir),
		clk,
		report.Config{WindowDays: 7})
	require.NoError(t, err)

	return &fixture{
		store:   store,
		writer:  bronze.NewWriter(store, clk),
		service: service,
		sinkDir: sinkDir,
	}
}

func (f *fixture) seed(t *testing.T, envs ...bronze.Envelope) {
	t.Helper()
	for _, env := range envs {
		_, _, err := f.writer.Ingest(context.Background(), env)
		require.NoError(t, err)
	}
	stats, err := silver.NewTransformer(f.store).ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, stats.Failed)
}

func commitEnvelope(sha string, at time.Time) bronze.Envelope {
	return bronze.Envelope{
		SourceSystem:   "github",
		EventType:      types.EventTypeCommit,
		SourceEventID:  sha,
		RepoExternalID: "acme/widgets",
		OccurredAt:     at,
		Payload: map[string]any{
			"sha": sha, "message": "feat: ship " + sha, "author_name": "Dev", "default_branch": "main",
		},
	}
}

func TestRunForRepositoryPersistsReport(t *testing.T) {
	f := newFixture(t)
	f.seed(t, commitEnvelope("c1", reportNow.Add(-48*time.Hour)))

	rep, err := f.service.RunForRepository(context.Background(), "acme", "widgets", reportNow)
	require.NoError(t, err)
	require.NotNil(t, rep)

	assert.Equal(t, types.ScopeRepository, rep.Scope)
	assert.NotEmpty(t, rep.RepositoryID)
	assert.Equal(t, reportNow.Add(-7*24*time.Hour), rep.WindowStart)
	assert.Equal(t, reportNow, rep.WindowEnd)
	assert.Equal(t, status.MockName, rep.Model)
	assert.Equal(t, types.StatusOnTrack, rep.MachineSummary.Status)
	assert.Contains(t, rep.HumanText, "# Status report: acme/widgets")

	stored, err := f.store.GetLatestReport(context.Background(), rep.RepositoryID)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, stored.ID)
}

func TestRunForRepositoryEmptyWindowIsNil(t *testing.T) {
	f := newFixture(t)
	f.seed(t, commitEnvelope("old", reportNow.Add(-30*24*time.Hour)))

	rep, err := f.service.RunForRepository(context.Background(), "acme", "widgets", reportNow)
	require.NoError(t, err)
	assert.Nil(t, rep)
}

func TestRunForRepositoryUnknownRepo(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.RunForRepository(context.Background(), "no", "such", reportNow)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestComputeNextWindowChainsFromPriorReport(t *testing.T) {
	f := newFixture(t)
	f.seed(t, commitEnvelope("c1", reportNow.Add(-48*time.Hour)))
	repo, err := f.store.GetRepository(context.Background(), "acme", "widgets")
	require.NoError(t, err)

	prior := &types.Report{
		ID:           ids.NewID(),
		Scope:        types.ScopeRepository,
		RepositoryID: repo.ID,
		WindowStart:  time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:    time.Date(2024, 7, 7, 0, 0, 0, 0, time.UTC),
		Model:        status.MockName,
		MachineSummary: types.MachineSummary{
			Status: types.StatusOnTrack, Summary: "s",
			Highlights: []string{}, Risks: []string{}, NextSteps: []string{},
		},
		GeneratedAt: time.Date(2024, 7, 7, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.store.SaveReport(context.Background(), prior, nil))

	start, end, err := f.service.ComputeNextWindow(context.Background(), repo.ID, reportNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 7, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, reportNow, end)
}

func TestComputeNextWindowWithoutPriorReport(t *testing.T) {
	f := newFixture(t)
	start, end, err := f.service.ComputeNextWindow(context.Background(), "repo-1", reportNow)
	require.NoError(t, err)
	assert.Equal(t, reportNow.Add(-7*24*time.Hour), start)
	assert.Equal(t, reportNow, end)
}

func TestSuccessiveReportsDoNotDoubleCover(t *testing.T) {
	f := newFixture(t)
	f.seed(t, commitEnvelope("c1", reportNow.Add(-48*time.Hour)))

	first, err := f.service.RunForRepository(context.Background(), "acme", "widgets", reportNow)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Same facts are covered now; a later run over an overlapping window
	// finds nothing new.
	second, err := f.service.RunForRepository(context.Background(), "acme", "widgets", reportNow.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestGenerateReportExplicitWindow(t *testing.T) {
	f := newFixture(t)
	at := reportNow.Add(-48 * time.Hour)
	f.seed(t, commitEnvelope("c1", at))

	rep, err := f.service.GenerateReport(context.Background(), "acme", "widgets",
		at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, at.Add(-time.Hour), rep.WindowStart)
}

func TestSinkReceivesRenderedMarkdown(t *testing.T) {
	f := newFixture(t)
	f.seed(t, commitEnvelope("c1", reportNow.Add(-48*time.Hour)))

	rep, err := f.service.RunForRepository(context.Background(), "acme", "widgets", reportNow)
	require.NoError(t, err)
	require.NotNil(t, rep)

	latest, err := os.ReadFile(filepath.Join(f.sinkDir, "acme", "widgets", "latest.md"))
	require.NoError(t, err)
	assert.Equal(t, rep.HumanText, string(latest))

	entries, err := os.ReadDir(filepath.Join(f.sinkDir, "acme", "widgets"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestConfigValidation(t *testing.T) {
	cfg := report.Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, report.DefaultWindowDays, cfg.WindowDays)

	bad := report.Config{WindowDays: -1}
	assert.Error(t, bad.Validate())
}
