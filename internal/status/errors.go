package status

import (
	"fmt"
	"time"

	"github.com/leynos/ghillie/internal/faults"
)

// APIError reports a non-success response from a model provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("status model http %d: %s", e.StatusCode, body)
}

func (e *APIError) Category() faults.Category {
	if e.StatusCode >= 500 {
		return faults.CategoryTransient
	}
	return faults.CategoryClientError
}

// RateLimitError reports a 429 with an optional retry-after hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("status model rate limited, retry after %s", e.RetryAfter)
	}
	return "status model rate limited"
}

func (e *RateLimitError) Category() faults.Category { return faults.CategoryClientError }

// ShapeError reports model output that is not the expected strict JSON.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string {
	return "status model response shape: " + e.Reason
}

func (e *ShapeError) Category() faults.Category { return faults.CategorySchemaDrift }
