package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/leynos/ghillie/internal/evidence"
	"github.com/leynos/ghillie/internal/faults"
)

// OpenAI defaults.
const (
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultModelTimeout   = 120 * time.Second
)

// OpenAIConfig configures the OpenAI chat-completions backend.
type OpenAIConfig struct {
	APIKey      string
	Endpoint    string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// Validate applies defaults and rejects out-of-range parameters.
func (c *OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return faults.Wrap(fmt.Errorf("openai api key is required"), faults.CategoryConfig)
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultOpenAIEndpoint
	}
	if c.Model == "" {
		c.Model = DefaultOpenAIModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultModelTimeout
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return faults.Wrap(fmt.Errorf("temperature must be in [0, 2], got %g", c.Temperature), faults.CategoryConfig)
	}
	if c.MaxTokens <= 0 {
		return faults.Wrap(fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens), faults.CategoryConfig)
	}
	return nil
}

// OpenAIModel is the chat-completions status backend.
type OpenAIModel struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	last       Metrics
}

// NewOpenAI validates the config and builds the backend.
func NewOpenAI(cfg OpenAIConfig) (*OpenAIModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &OpenAIModel{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// WithHTTPClient overrides the HTTP client, for tests.
func (m *OpenAIModel) WithHTTPClient(httpClient *http.Client) *OpenAIModel {
	m.httpClient = httpClient
	return m
}

func (m *OpenAIModel) Name() string { return m.cfg.Model }

func (m *OpenAIModel) LastMetrics() Metrics { return m.last }

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

func (m *OpenAIModel) Generate(ctx context.Context, bundle *evidence.Bundle) (*Result, error) {
	userPrompt, err := buildUserPrompt(bundle)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(chatRequest{
		Model: m.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    m.cfg.Temperature,
		MaxTokens:      m.cfg.MaxTokens,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	url := strings.TrimSuffix(m.cfg.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		// Timeouts and network errors categorize as transient.
		return nil, faults.Wrap(fmt.Errorf("chat completion: %w", err), faults.CategoryTransient)
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	_ = resp.Body.Close()
	if err != nil {
		return nil, faults.Wrap(fmt.Errorf("read chat response: %w", err), faults.CategoryTransient)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: retryAfterHint(resp.Header)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ShapeError{Reason: "response body is not valid JSON"}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ShapeError{Reason: "response carries no choices"}
	}

	result, err := parseModelContent(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	m.last = Metrics{
		LatencyMS:        time.Since(started).Milliseconds(),
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}
	recordInvocation(ctx, m.cfg.Model, m.last)
	return result, nil
}

func retryAfterHint(headers http.Header) time.Duration {
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
