// Package ingest drives the source client per repository, writing
// Bronze rows and advancing per-kind ingestion offsets while preserving
// truncated backlogs.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leynos/ghillie/internal/bronze"
	"github.com/leynos/ghillie/internal/catalogue"
	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/logging"
	"github.com/leynos/ghillie/internal/noise"
	"github.com/leynos/ghillie/internal/source"
	"github.com/leynos/ghillie/internal/storage"
	"github.com/leynos/ghillie/internal/types"
)

// sourceSystem tags every Bronze row written by this worker.
const sourceSystem = "github"

// docCursorSep joins a documentation path and its in-path cursor into
// one resume token covering the union iteration. Paths cannot contain
// a newline.
const docCursorSep = "\n"

// Worker runs the per-repository ingestion state machine.
type Worker struct {
	store     storage.Storage
	client    source.Client
	writer    *bronze.Writer
	catalogue catalogue.Catalogue
	clock     clock.Clock
	cfg       Config
}

// NewWorker wires an ingestion worker. The catalogue may be nil, in
// which case no noise filtering applies.
func NewWorker(store storage.Storage, client source.Client, cat catalogue.Catalogue, clk clock.Clock, cfg Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Worker{
		store:     store,
		client:    client,
		writer:    bronze.NewWriter(store, clk),
		catalogue: cat,
		clock:     clk,
		cfg:       cfg,
	}, nil
}

// RunAll ingests every registered repository, at most concurrency runs
// in flight. Per-repo failures are logged and isolated; the joined
// error is returned after all repos have been attempted.
func (w *Worker) RunAll(ctx context.Context, concurrency int) error {
	repos, err := w.store.ListRepositories(ctx)
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	var failures []error
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			if _, err := w.RunRepository(ctx, repo); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", repo.Slug(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(failures...)
}

// RunRepository performs one ingestion run for a repository, returning
// the per-kind counts of newly written Bronze rows. A repository with
// ingestion disabled is a pure no-op. Offsets are persisted once at
// end of run; on failure nothing is persisted and the next run resumes
// from the prior watermark.
func (w *Worker) RunRepository(ctx context.Context, repo *types.Repository) (map[string]int, error) {
	if !repo.IngestionEnabled {
		return nil, nil
	}

	slug := repo.Slug()
	started := w.clock.Now()
	logging.RunStarted(slug, repo.EstateID)

	counts, err := w.run(ctx, repo)
	if err != nil {
		logging.RunFailed(slug, repo.EstateID, w.clock.Now().Sub(started), err)
		return nil, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	logging.RunCompleted(slug, repo.EstateID, w.clock.Now().Sub(started), counts, total)
	return counts, nil
}

func (w *Worker) run(ctx context.Context, repo *types.Repository) (map[string]int, error) {
	slug := repo.Slug()
	predicate := w.loadPredicate(ctx, slug)

	offset, err := w.store.GetIngestionOffset(ctx, slug)
	if errors.Is(err, storage.ErrNotFound) {
		offset = types.NewIngestionOffset(slug)
	} else if err != nil {
		return nil, fmt.Errorf("load ingestion offset: %w", err)
	}

	counts := make(map[string]int, len(types.AllKinds))
	for _, kind := range types.AllKinds {
		n, err := w.runKind(ctx, repo, offset, kind, predicate)
		if err != nil {
			return nil, fmt.Errorf("ingest %s: %w", kind, err)
		}
		counts[string(kind)] = n
	}

	offset.UpdatedAt = w.clock.Now()
	if err := w.store.MergeIngestionOffset(ctx, offset); err != nil {
		return nil, fmt.Errorf("persist ingestion offset: %w", err)
	}
	return counts, nil
}

// loadPredicate compiles the repository's noise filters. Catalogue read
// failures degrade to allow-all rather than failing the run.
func (w *Worker) loadPredicate(ctx context.Context, slug string) *noise.Predicate {
	if w.catalogue == nil {
		return noise.AllowAll()
	}
	configs, err := w.catalogue.NoiseConfigs(ctx, slug)
	if err != nil {
		return noise.AllowAll()
	}
	return noise.Compile(configs)
}

// streamResult accumulates the per-kind stream outcome feeding the
// offset update.
type streamResult struct {
	ingested   int
	processed  int
	maxSeen    time.Time
	lastCursor string
	truncated  bool
}

func (w *Worker) runKind(ctx context.Context, repo *types.Repository, offset *types.IngestionOffset, kind types.EntityKind, predicate *noise.Predicate) (int, error) {
	kindOffset := offset.Kinds[kind]
	since := w.computeSince(kindOffset)
	resuming := kindOffset.LastCursor != nil

	var result *streamResult
	var err error
	if kind == types.KindDocChange {
		result, err = w.streamDocChanges(ctx, repo, since, kindOffset.LastCursor, predicate)
	} else {
		var after string
		if resuming {
			after = *kindOffset.LastCursor
		}
		stream := w.openStream(ctx, repo, kind, since, after)
		result, err = w.consume(ctx, repo, stream, predicate, &streamResult{})
	}
	if err != nil {
		return 0, err
	}

	offset.Kinds[kind] = nextOffset(kindOffset, result, resuming)
	recordIngested(ctx, repo.Slug(), string(kind), result.ingested)
	if result.truncated {
		logging.StreamTruncated(repo.Slug(), string(kind), result.processed, w.cfg.MaxEventsPerKind)
	} else {
		logging.StreamCompleted(repo.Slug(), string(kind), result.processed, w.cfg.MaxEventsPerKind)
	}
	return result.ingested, nil
}

// computeSince derives the stream lower bound: the watermark (or the
// initial lookback on first run) minus the overlap.
func (w *Worker) computeSince(kindOffset types.KindOffset) time.Time {
	base := w.clock.Now().Add(-w.cfg.InitialLookback)
	if kindOffset.LastIngestedAt != nil {
		base = *kindOffset.LastIngestedAt
	}
	return base.Add(-w.cfg.Overlap)
}

func (w *Worker) openStream(ctx context.Context, repo *types.Repository, kind types.EntityKind, since time.Time, after string) source.Stream {
	switch kind {
	case types.KindCommit:
		return w.client.Commits(ctx, repo, since, after)
	case types.KindPullRequest:
		return w.client.PullRequests(ctx, repo, since, after)
	default:
		return w.client.Issues(ctx, repo, since, after)
	}
}

// consume drains a stream into Bronze up to the remaining per-kind
// budget, accumulating into result. Dropped events still advance
// maxSeen and lastCursor. When the cap is hit with another event still
// available the stream is marked truncated.
func (w *Worker) consume(ctx context.Context, repo *types.Repository, stream source.Stream, predicate *noise.Predicate, result *streamResult) (*streamResult, error) {
	for {
		if result.processed >= w.cfg.MaxEventsPerKind {
			// Peek one event to distinguish an exact-cap drain from a
			// truncation. A peeked event is re-fetched next run because
			// the resume cursor points at the last processed event.
			_, ok, err := stream.Next(ctx)
			if err != nil {
				return nil, err
			}
			result.truncated = ok
			return result, nil
		}

		ev, ok, err := stream.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return result, nil
		}

		result.processed++
		if ev.OccurredAt.After(result.maxSeen) {
			result.maxSeen = ev.OccurredAt
		}
		if ev.Cursor != "" {
			result.lastCursor = ev.Cursor
		}
		if predicate.Drop(ev) {
			continue
		}

		_, created, err := w.writer.Ingest(ctx, bronze.Envelope{
			SourceSystem:   sourceSystem,
			EventType:      ev.EventType,
			SourceEventID:  ev.SourceEventID,
			RepoExternalID: repo.Slug(),
			OccurredAt:     ev.OccurredAt,
			Payload:        ev.Payload,
		})
		if err != nil {
			return nil, err
		}
		if created {
			result.ingested++
		}
	}
}

// streamDocChanges iterates the union of configured documentation
// paths under one shared budget. The resume token encodes the path the
// truncation happened in plus that path's cursor; earlier paths are
// skipped on resume because their backlog was already drained.
func (w *Worker) streamDocChanges(ctx context.Context, repo *types.Repository, since time.Time, resume *string, predicate *noise.Predicate) (*streamResult, error) {
	resumePath, resumeCursor := splitDocCursor(resume)
	skipping := resumePath != ""

	result := &streamResult{}
	for _, path := range repo.DocumentationPaths {
		if skipping {
			if path != resumePath {
				continue
			}
			skipping = false
		}

		after := ""
		if path == resumePath {
			after = resumeCursor
		}

		before := result.lastCursor
		stream := w.client.DocChanges(ctx, repo, path, since, after)
		if _, err := w.consume(ctx, repo, stream, predicate, result); err != nil {
			return nil, err
		}
		if result.lastCursor != before {
			result.lastCursor = path + docCursorSep + result.lastCursor
		} else if result.truncated {
			// Cap hit before this path yielded anything; resume where
			// the previous path left off.
			result.lastCursor = before
		}
		if result.truncated {
			return result, nil
		}
	}
	return result, nil
}

func splitDocCursor(resume *string) (path, cursor string) {
	if resume == nil {
		return "", ""
	}
	parts := strings.SplitN(*resume, docCursorSep, 2)
	if len(parts) != 2 {
		return "", *resume
	}
	return parts[0], parts[1]
}

// nextOffset applies the backlog-preserving update rules. A truncated
// stream keeps its watermark frozen behind a resume cursor; a drained
// stream promotes the highest observed timestamp to the watermark.
func nextOffset(prev types.KindOffset, result *streamResult, resuming bool) types.KindOffset {
	next := prev

	if result.truncated {
		cursor := result.lastCursor
		next.LastCursor = &cursor
		seen := result.maxSeen
		if prev.LastSeenAt != nil && prev.LastSeenAt.After(seen) {
			seen = *prev.LastSeenAt
		}
		if !seen.IsZero() {
			next.LastSeenAt = &seen
		}
		return next
	}

	next.LastCursor = nil
	next.LastSeenAt = nil
	if resuming {
		watermark := result.maxSeen
		if prev.LastSeenAt != nil && prev.LastSeenAt.After(watermark) {
			watermark = *prev.LastSeenAt
		}
		if !watermark.IsZero() {
			next.LastIngestedAt = &watermark
		}
		return next
	}
	if !result.maxSeen.IsZero() {
		watermark := result.maxSeen
		next.LastIngestedAt = &watermark
	}
	return next
}
