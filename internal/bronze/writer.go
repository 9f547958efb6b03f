package bronze

import (
	"context"
	"fmt"

	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/storage"
	"github.com/leynos/ghillie/internal/types"
)

// Writer turns event envelopes into Bronze rows, exactly once per
// distinct envelope regardless of retries or concurrent ingesters.
type Writer struct {
	store storage.Storage
	clock clock.Clock
}

// NewWriter creates a raw-event writer.
func NewWriter(store storage.Storage, clk clock.Clock) *Writer {
	return &Writer{store: store, clock: clk}
}

// Ingest persists the envelope, or returns the already-persisted row on
// a dedupe hit. Created reports whether a new row was written.
func (w *Writer) Ingest(ctx context.Context, env Envelope) (*types.RawEvent, bool, error) {
	if env.OccurredAt.IsZero() {
		return nil, false, fmt.Errorf("ingest %s: %w", env.EventType, ErrMissingTimestamp)
	}

	payload, err := NormalizePayload(env.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("ingest %s: %w", env.EventType, err)
	}
	key, err := DedupeKey(env)
	if err != nil {
		return nil, false, err
	}

	row := &types.RawEvent{
		SourceSystem:   env.SourceSystem,
		SourceEventID:  env.SourceEventID,
		EventType:      env.EventType,
		RepoExternalID: env.RepoExternalID,
		OccurredAt:     env.OccurredAt.UTC(),
		IngestedAt:     w.clock.Now(),
		DedupeKey:      key,
		Payload:        payload,
		TransformState: types.TransformPending,
	}

	persisted, created, err := w.store.InsertRawEvent(ctx, row)
	if err != nil {
		return nil, false, fmt.Errorf("ingest %s: %w", env.EventType, err)
	}
	return persisted, created, nil
}
