// Package github implements the source-client contract against the
// GitHub GraphQL API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/leynos/ghillie/internal/source"
)

const (
	// DefaultEndpoint is the public GitHub GraphQL endpoint.
	DefaultEndpoint = "https://api.github.com/graphql"

	// DefaultTimeout bounds one GraphQL round trip during ingestion.
	DefaultTimeout = 20 * time.Second

	// pageSize is the GraphQL page size for every query.
	pageSize = 100

	// maxRetryAfter caps how long a Retry-After hint is honoured before
	// the run gives up on the stream.
	maxRetryAfter = 60 * time.Second

	maxRetries      = 3
	maxResponseSize = 50 * 1024 * 1024
)

// Client talks to the GitHub GraphQL API and yields cursor-tagged event
// streams per entity kind.
type Client struct {
	token      string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a GraphQL source client. The token must be
// non-empty.
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, &source.ConfigError{Setting: "github token", Reason: "missing or empty"}
	}
	return &Client{
		token:    token,
		endpoint: DefaultEndpoint,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}, nil
}

// WithHTTPClient returns a copy of the client using a custom HTTP
// client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{token: c.token, endpoint: c.endpoint, httpClient: httpClient}
}

// WithEndpoint returns a copy of the client targeting a custom endpoint
// (for testing or GitHub Enterprise).
func (c *Client) WithEndpoint(endpoint string) *Client {
	return &Client{token: c.token, endpoint: endpoint, httpClient: c.httpClient}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// doQuery executes one GraphQL query with retries, decoding data into
// out. Transient failures (5xx, network errors) back off exponentially;
// rate limits honour the Retry-After hint; 4xx and body-carried errors
// fail immediately.
func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any, out any) error {
	reqBody, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	var data json.RawMessage
	err = backoff.Retry(func() error {
		var retryErr error
		data, retryErr = c.roundTrip(ctx, reqBody)
		return retryErr
	}, policy)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &source.ShapeError{Field: "data"}
	}
	return nil
}

// roundTrip performs one HTTP exchange. Errors it returns are retryable
// unless wrapped in backoff.Permanent.
func (c *Client) roundTrip(ctx context.Context, reqBody []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read graphql response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header)
		httpErr := &source.HTTPError{StatusCode: resp.StatusCode, Body: string(body), RetryAfter: retryAfter}
		if retryAfter <= 0 || retryAfter > maxRetryAfter {
			return nil, backoff.Permanent(httpErr)
		}
		select {
		case <-ctx.Done():
			return nil, backoff.Permanent(ctx.Err())
		case <-time.After(retryAfter):
			return nil, httpErr
		}
	case resp.StatusCode >= 500:
		return nil, &source.HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, backoff.Permanent(&source.HTTPError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var parsed graphQLResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, backoff.Permanent(&source.ShapeError{Field: "graphql response"})
	}
	if len(parsed.Errors) > 0 {
		messages := make([]string, len(parsed.Errors))
		for i, e := range parsed.Errors {
			messages[i] = e.Message
		}
		return nil, backoff.Permanent(&source.GraphQLError{Messages: messages})
	}
	if len(parsed.Data) == 0 || string(parsed.Data) == "null" {
		return nil, backoff.Permanent(&source.ShapeError{Field: "data"})
	}
	return parsed.Data, nil
}

func parseRetryAfter(headers http.Header) time.Duration {
	raw := headers.Get("Retry-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
