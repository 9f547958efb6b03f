package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leynos/ghillie/internal/faults"
)

func TestClassifyDocPath(t *testing.T) {
	tests := []struct {
		path      string
		isRoadmap bool
		isADR     bool
	}{
		{"docs/roadmap.md", true, false},
		{"docs/ROADMAP.md", true, false},
		{"planning/product-roadmap-2024.md", true, false},
		{"docs/adr/0001-use-sqlite.md", false, true},
		{"docs/architecture-decision-records/0002.md", false, true},
		{"doc/adr", false, true},
		{`docs\adr\0003.md`, false, true},
		{"docs/roadmap/adr/0004.md", true, true},
		{"README.md", false, false},
		{"docs/guide.md", false, false},
		{"docs/radar.md", false, false},
	}
	for _, tt := range tests {
		roadmap, adr := ClassifyDocPath(tt.path)
		assert.Equal(t, tt.isRoadmap, roadmap, "roadmap for %s", tt.path)
		assert.Equal(t, tt.isADR, adr, "adr for %s", tt.path)
	}
}

func TestSliceStreamYieldsInOrder(t *testing.T) {
	events := []*Event{
		{SourceEventID: "a", Cursor: "c1"},
		{SourceEventID: "b", Cursor: "c2"},
	}
	stream := NewSliceStream(events)

	for _, want := range events {
		got, ok, err := stream.Next(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSliceStreamHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := NewSliceStream([]*Event{{SourceEventID: "a"}})
	_, _, err := stream.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrStream(t *testing.T) {
	boom := errors.New("boom")
	stream := NewErrStream(boom)
	_, ok, err := stream.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestErrorCategories(t *testing.T) {
	assert.Equal(t, faults.CategoryTransient, faults.Categorize(&HTTPError{StatusCode: 502}))
	assert.Equal(t, faults.CategoryClientError, faults.Categorize(&HTTPError{StatusCode: 404}))
	assert.Equal(t, faults.CategoryClientError, faults.Categorize(&HTTPError{StatusCode: 429}))
	assert.Equal(t, faults.CategoryClientError, faults.Categorize(&GraphQLError{Messages: []string{"bad"}}))
	assert.Equal(t, faults.CategorySchemaDrift, faults.Categorize(&ShapeError{Field: "repository"}))
	assert.Equal(t, faults.CategoryConfig, faults.Categorize(&ConfigError{Setting: "token", Reason: "empty"}))
}
