package ingest

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/leynos/ghillie/internal/telemetry"
)

var (
	instrumentsOnce sync.Once
	eventCounter    metric.Int64Counter
)

// recordIngested counts newly persisted Bronze rows per repository and
// kind. No-op providers make this free when telemetry is off.
func recordIngested(ctx context.Context, repo, kind string, n int) {
	if n == 0 {
		return
	}
	instrumentsOnce.Do(func() {
		meter := telemetry.Meter("")
		eventCounter, _ = meter.Int64Counter("ghillie.ingest.events",
			metric.WithDescription("Raw events newly written to Bronze"))
	})
	if eventCounter != nil {
		eventCounter.Add(ctx, int64(n), metric.WithAttributes(
			attribute.String("repository", repo),
			attribute.String("kind", kind)))
	}
}
