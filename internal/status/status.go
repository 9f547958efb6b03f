// Package status turns evidence bundles into structured status results.
// The Model interface is pluggable: a deterministic mock for tests and
// air-gapped deployments, plus OpenAI and Anthropic backends.
package status

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/leynos/ghillie/internal/evidence"
	"github.com/leynos/ghillie/internal/telemetry"
	"github.com/leynos/ghillie/internal/types"
)

// maxListItems caps highlights, risks and next steps per result.
const maxListItems = 5

// Result is a status model's structured output.
type Result struct {
	Summary    string
	Status     types.ReportStatus
	Highlights []string
	Risks      []string
	NextSteps  []string
}

// Metrics captures one invocation's cost, for persistence on the
// report.
type Metrics struct {
	LatencyMS        int64
	PromptTokens     int64
	CompletionTokens int64
}

// Model generates a status result from an evidence bundle.
// LastMetrics returns the most recent invocation's metrics; models are
// not safe for concurrent Generate calls on the same instance.
type Model interface {
	Name() string
	Generate(ctx context.Context, bundle *evidence.Bundle) (*Result, error)
	LastMetrics() Metrics
}

// capLists enforces the per-list item caps in place.
func capLists(result *Result) {
	if len(result.Highlights) > maxListItems {
		result.Highlights = result.Highlights[:maxListItems]
	}
	if len(result.Risks) > maxListItems {
		result.Risks = result.Risks[:maxListItems]
	}
	if len(result.NextSteps) > maxListItems {
		result.NextSteps = result.NextSteps[:maxListItems]
	}
}

// parseStatus maps a model-emitted status string onto the enum, with
// anything unrecognized becoming unknown.
func parseStatus(raw string) types.ReportStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(types.StatusOnTrack):
		return types.StatusOnTrack
	case string(types.StatusAtRisk):
		return types.StatusAtRisk
	case string(types.StatusBlocked):
		return types.StatusBlocked
	default:
		return types.StatusUnknown
	}
}

var (
	instrumentsOnce  sync.Once
	tokenCounter     metric.Int64Counter
	latencyHistogram metric.Int64Histogram
)

// recordInvocation emits the per-invocation token and latency
// instruments. No-op providers make this free when telemetry is off.
func recordInvocation(ctx context.Context, model string, m Metrics) {
	instrumentsOnce.Do(func() {
		meter := telemetry.Meter("")
		tokenCounter, _ = meter.Int64Counter("ghillie.status_model.tokens",
			metric.WithDescription("Tokens consumed by status model invocations"))
		latencyHistogram, _ = meter.Int64Histogram("ghillie.status_model.latency",
			metric.WithDescription("Status model invocation latency"),
			metric.WithUnit("ms"))
	})
	attrs := metric.WithAttributes(attribute.String("model", model))
	if tokenCounter != nil {
		tokenCounter.Add(ctx, m.PromptTokens, attrs, metric.WithAttributes(attribute.String("kind", "prompt")))
		tokenCounter.Add(ctx, m.CompletionTokens, attrs, metric.WithAttributes(attribute.String("kind", "completion")))
	}
	if latencyHistogram != nil {
		latencyHistogram.Record(ctx, m.LatencyMS, attrs)
	}
}
