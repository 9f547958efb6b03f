package status

import (
	"fmt"

	"github.com/leynos/ghillie/internal/faults"
)

// Backend identifiers accepted by New.
const (
	BackendMock      = "mock"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
)

// New builds the status model named by backend.
func New(backend string, openaiCfg OpenAIConfig, anthropicCfg AnthropicConfig) (Model, error) {
	switch backend {
	case BackendMock:
		return NewMock(), nil
	case BackendOpenAI:
		return NewOpenAI(openaiCfg)
	case BackendAnthropic:
		return NewAnthropic(anthropicCfg)
	default:
		return nil, faults.Wrap(fmt.Errorf("unknown status model backend %q", backend), faults.CategoryConfig)
	}
}
