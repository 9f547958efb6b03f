// Package source defines the contract between the ingestion worker and
// a source-control provider: lazy, cursor-tagged event streams per
// entity kind, most recent first.
package source

import (
	"context"
	"time"

	"github.com/leynos/ghillie/internal/types"
)

// Event is one external activity observation. Cursor is an opaque
// resume-after token meaningful only to the client that produced it.
type Event struct {
	EventType     string
	SourceEventID string
	OccurredAt    time.Time
	Payload       map[string]any
	Cursor        string
}

// Stream yields events lazily. Next returns (event, true, nil) per
// event, (nil, false, nil) once drained, and (nil, false, err) on
// failure. A stream is single-use and not safe for concurrent callers.
type Stream interface {
	Next(ctx context.Context) (*Event, bool, error)
}

// Client is a source-control provider. Each method returns a stream of
// events ordered most recent first, bounded below by since and
// optionally resumed from an opaque after cursor.
//
// Commits and DocChanges apply since server-side; PullRequests and
// Issues page by update time descending and stop client-side at the
// first event at or below since.
type Client interface {
	Commits(ctx context.Context, repo *types.Repository, since time.Time, after string) Stream
	PullRequests(ctx context.Context, repo *types.Repository, since time.Time, after string) Stream
	Issues(ctx context.Context, repo *types.Repository, since time.Time, after string) Stream
	DocChanges(ctx context.Context, repo *types.Repository, path string, since time.Time, after string) Stream
}

// SliceStream adapts a fixed event list to the Stream contract. Used by
// tests and by providers that fetch eagerly.
type SliceStream struct {
	events []*Event
	err    error
	pos    int
}

// NewSliceStream returns a stream over events in the given order.
func NewSliceStream(events []*Event) *SliceStream {
	return &SliceStream{events: events}
}

// NewErrStream returns a stream that fails immediately with err.
func NewErrStream(err error) *SliceStream {
	return &SliceStream{err: err}
}

func (s *SliceStream) Next(ctx context.Context) (*Event, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.pos >= len(s.events) {
		return nil, false, nil
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, true, nil
}
