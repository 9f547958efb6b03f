package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorizeWrapped(t *testing.T) {
	err := Wrap(errors.New("boom"), CategoryIntegrity)
	assert.Equal(t, CategoryIntegrity, Categorize(err))

	// Category survives further fmt.Errorf wrapping.
	outer := fmt.Errorf("ingest: %w", err)
	assert.Equal(t, CategoryIntegrity, Categorize(outer))
}

func TestCategorizeDeadline(t *testing.T) {
	err := fmt.Errorf("fetch: %w", context.DeadlineExceeded)
	assert.Equal(t, CategoryTransient, Categorize(err))
}

func TestCategorizeUnknown(t *testing.T) {
	assert.Equal(t, CategoryUnknown, Categorize(errors.New("mystery")))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CategoryDatabase))
}
