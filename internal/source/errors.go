package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/leynos/ghillie/internal/faults"
)

// HTTPError reports a non-success provider response. RetryAfter is the
// parsed Retry-After hint on rate-limit responses, zero otherwise.
type HTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("source http %d (retry after %s): %s", e.StatusCode, e.RetryAfter, snippet(e.Body))
	}
	return fmt.Sprintf("source http %d: %s", e.StatusCode, snippet(e.Body))
}

// Category classifies 5xx as transient and everything else as a client
// error, including 429 (the caller honours RetryAfter before retrying).
func (e *HTTPError) Category() faults.Category {
	if e.StatusCode >= 500 {
		return faults.CategoryTransient
	}
	return faults.CategoryClientError
}

// GraphQLError reports errors carried in a 200-status GraphQL body.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql errors: " + strings.Join(e.Messages, "; ")
}

func (e *GraphQLError) Category() faults.Category { return faults.CategoryClientError }

// ShapeError reports a response missing an expected field.
type ShapeError struct {
	Field string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("response missing expected field %q", e.Field)
}

func (e *ShapeError) Category() faults.Category { return faults.CategorySchemaDrift }

// ConfigError reports a missing or invalid client setting.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("source config %s: %s", e.Setting, e.Reason)
}

func (e *ConfigError) Category() faults.Category { return faults.CategoryConfig }

func snippet(body string) string {
	const max = 200
	if len(body) > max {
		return body[:max] + "..."
	}
	return body
}
