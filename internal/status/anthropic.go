package status

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/leynos/ghillie/internal/evidence"
	"github.com/leynos/ghillie/internal/faults"
)

// DefaultAnthropicModel is used when no model id is configured.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

const (
	anthropicMaxRetries     = 3
	anthropicInitialBackoff = 1 * time.Second
)

// AnthropicConfig configures the Anthropic messages backend.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Validate applies defaults and rejects out-of-range parameters.
func (c *AnthropicConfig) Validate() error {
	if c.APIKey == "" {
		return faults.Wrap(fmt.Errorf("anthropic api key is required"), faults.CategoryConfig)
	}
	if c.Model == "" {
		c.Model = DefaultAnthropicModel
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return faults.Wrap(fmt.Errorf("temperature must be in [0, 2], got %g", c.Temperature), faults.CategoryConfig)
	}
	if c.MaxTokens <= 0 {
		return faults.Wrap(fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens), faults.CategoryConfig)
	}
	return nil
}

// AnthropicModel is the Anthropic messages status backend.
type AnthropicModel struct {
	client anthropic.Client
	cfg    AnthropicConfig
	last   Metrics
}

// NewAnthropic validates the config and builds the backend.
func NewAnthropic(cfg AnthropicConfig) (*AnthropicModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &AnthropicModel{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:    cfg,
	}, nil
}

func (m *AnthropicModel) Name() string { return m.cfg.Model }

func (m *AnthropicModel) LastMetrics() Metrics { return m.last }

func (m *AnthropicModel) Generate(ctx context.Context, bundle *evidence.Bundle) (*Result, error) {
	userPrompt, err := buildUserPrompt(bundle)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.cfg.Model),
		MaxTokens:   int64(m.cfg.MaxTokens),
		Temperature: anthropic.Float(m.cfg.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	started := time.Now()
	message, err := m.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(message.Content) == 0 {
		return nil, &ShapeError{Reason: "response carries no content blocks"}
	}
	content := message.Content[0]
	if content.Type != "text" {
		return nil, &ShapeError{Reason: fmt.Sprintf("content block is %s, not text", content.Type)}
	}

	result, err := parseModelContent(content.Text)
	if err != nil {
		return nil, err
	}

	m.last = Metrics{
		LatencyMS:        time.Since(started).Milliseconds(),
		PromptTokens:     message.Usage.InputTokens,
		CompletionTokens: message.Usage.OutputTokens,
	}
	recordInvocation(ctx, m.cfg.Model, m.last)
	return result, nil
}

func (m *AnthropicModel) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= anthropicMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := anthropicInitialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		message, err := m.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !anthropicRetryable(err) {
			return nil, mapAnthropicError(err)
		}
	}
	return nil, mapAnthropicError(fmt.Errorf("after %d attempts: %w", anthropicMaxRetries+1, lastErr))
}

func anthropicRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			var hint time.Duration
			if apiErr.Response != nil {
				hint = retryAfterHint(apiErr.Response.Header)
			}
			return &RateLimitError{RetryAfter: hint}
		}
		return &APIError{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return faults.Wrap(err, faults.CategoryTransient)
	}
	return err
}
