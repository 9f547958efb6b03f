package bronze_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leynos/ghillie/internal/bronze"
	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/storage/sqlite"
	"github.com/leynos/ghillie/internal/types"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "bronze.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func commitEnvelope() bronze.Envelope {
	return bronze.Envelope{
		SourceSystem:   "github",
		EventType:      types.EventTypeCommit,
		SourceEventID:  "abc123",
		RepoExternalID: "acme/widgets",
		OccurredAt:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Payload:        map[string]any{"sha": "abc123", "message": "fix: widget"},
	}
}

func TestIngestCreatesRow(t *testing.T) {
	store := newStore(t)
	writer := bronze.NewWriter(store, clock.At(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)))

	row, created, err := writer.Ingest(context.Background(), commitEnvelope())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, row.ID)
	assert.Equal(t, types.TransformPending, row.TransformState)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), row.IngestedAt)

	n, err := store.CountRawEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestIsIdempotent(t *testing.T) {
	store := newStore(t)
	writer := bronze.NewWriter(store, clock.At(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)))

	first, created, err := writer.Ingest(context.Background(), commitEnvelope())
	require.NoError(t, err)
	require.True(t, created)

	// Re-observation of the same event, hours later, writes nothing.
	later := bronze.NewWriter(store, clock.At(time.Date(2024, 6, 2, 6, 0, 0, 0, time.UTC)))
	second, created, err := later.Ingest(context.Background(), commitEnvelope())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.IngestedAt, second.IngestedAt)

	n, err := store.CountRawEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestSameInstantDifferentZoneDedupes(t *testing.T) {
	store := newStore(t)
	writer := bronze.NewWriter(store, clock.At(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)))

	_, created, err := writer.Ingest(context.Background(), commitEnvelope())
	require.NoError(t, err)
	require.True(t, created)

	env := commitEnvelope()
	env.OccurredAt = env.OccurredAt.In(time.FixedZone("UTC+5", 5*60*60))
	_, created, err = writer.Ingest(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestIngestDistinctPayloadsCoexist(t *testing.T) {
	store := newStore(t)
	writer := bronze.NewWriter(store, clock.System{})

	_, created, err := writer.Ingest(context.Background(), commitEnvelope())
	require.NoError(t, err)
	require.True(t, created)

	env := commitEnvelope()
	env.SourceEventID = "def456"
	env.Payload = map[string]any{"sha": "def456", "message": "feat: gadget"}
	_, created, err = writer.Ingest(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, created)

	n, err := store.CountRawEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIngestRejectsZeroTimestamp(t *testing.T) {
	store := newStore(t)
	writer := bronze.NewWriter(store, clock.System{})

	env := commitEnvelope()
	env.OccurredAt = time.Time{}
	_, _, err := writer.Ingest(context.Background(), env)
	assert.ErrorIs(t, err, bronze.ErrMissingTimestamp)

	n, err := store.CountRawEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestRejectsUnsupportedPayload(t *testing.T) {
	store := newStore(t)
	writer := bronze.NewWriter(store, clock.System{})

	env := commitEnvelope()
	env.Payload = map[string]any{"fn": func() {}}
	_, _, err := writer.Ingest(context.Background(), env)
	assert.ErrorIs(t, err, bronze.ErrUnsupportedPayload)
}
