// Package health computes on-demand ingestion lag metrics from the
// persisted ingestion offsets.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/faults"
	"github.com/leynos/ghillie/internal/storage"
	"github.com/leynos/ghillie/internal/types"
)

// DefaultStalledThreshold marks a repository stalled after a day with
// no watermark movement.
const DefaultStalledThreshold = 24 * time.Hour

// Config holds the health service knobs.
type Config struct {
	StalledThreshold time.Duration
}

// Validate applies defaults and rejects nonsensical thresholds.
func (c *Config) Validate() error {
	if c.StalledThreshold == 0 {
		c.StalledThreshold = DefaultStalledThreshold
	}
	if c.StalledThreshold < 0 {
		return faults.Wrap(fmt.Errorf("stalled threshold must be positive, got %s", c.StalledThreshold), faults.CategoryConfig)
	}
	return nil
}

// RepositoryLag is one tracked repository's ingestion lag snapshot.
// The duration fields are nil when the repository has never ingested.
type RepositoryLag struct {
	RepoExternalID         string
	TimeSinceLastIngestion *time.Duration
	OldestWatermarkAge     *time.Duration
	HasPendingCursors      bool
	IsStalled              bool
}

// Service answers lag queries over ingestion offsets.
type Service struct {
	store storage.Storage
	clock clock.Clock
	cfg   Config
}

// NewService validates the config and wires the health service.
func NewService(store storage.Storage, clk clock.Clock, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{store: store, clock: clk, cfg: cfg}, nil
}

// Lags reports per-repository ingestion lag for every tracked offset
// row. A repository with no watermarks, or one whose freshest watermark
// is older than the stalled threshold, is stalled. Pending resume
// cursors are surfaced but do not mark a repository stalled on their
// own.
func (s *Service) Lags(ctx context.Context) ([]RepositoryLag, error) {
	offsets, err := s.store.ListIngestionOffsets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ingestion offsets: %w", err)
	}

	now := s.clock.Now()
	out := make([]RepositoryLag, 0, len(offsets))
	for _, offset := range offsets {
		out = append(out, s.lagFor(now, offset))
	}
	return out, nil
}

func (s *Service) lagFor(now time.Time, offset *types.IngestionOffset) RepositoryLag {
	lag := RepositoryLag{RepoExternalID: offset.RepoExternalID}

	var newest, oldest *time.Time
	for _, kind := range offset.Kinds {
		if kind.LastCursor != nil {
			lag.HasPendingCursors = true
		}
		wm := kind.LastIngestedAt
		if wm == nil {
			continue
		}
		if newest == nil || wm.After(*newest) {
			newest = wm
		}
		if oldest == nil || wm.Before(*oldest) {
			oldest = wm
		}
	}

	if newest == nil {
		lag.IsStalled = true
		return lag
	}
	since := now.Sub(*newest)
	oldestAge := now.Sub(*oldest)
	lag.TimeSinceLastIngestion = &since
	lag.OldestWatermarkAge = &oldestAge
	lag.IsStalled = since > s.cfg.StalledThreshold
	return lag
}
