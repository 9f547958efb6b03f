// Package report validates, renders and persists Gold status reports,
// composing the evidence bundler with a pluggable status model.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/evidence"
	"github.com/leynos/ghillie/internal/faults"
	"github.com/leynos/ghillie/internal/ids"
	"github.com/leynos/ghillie/internal/logging"
	"github.com/leynos/ghillie/internal/status"
	"github.com/leynos/ghillie/internal/storage"
	"github.com/leynos/ghillie/internal/types"
)

// DefaultWindowDays is the reporting window used when a repository has
// no prior report.
const DefaultWindowDays = 7

// Config holds the reporting service knobs. SinkPath empty disables the
// filesystem sink.
type Config struct {
	WindowDays int
	SinkPath   string
}

// Validate applies defaults and rejects nonsensical windows.
func (c *Config) Validate() error {
	if c.WindowDays == 0 {
		c.WindowDays = DefaultWindowDays
	}
	if c.WindowDays < 0 {
		return faults.Wrap(fmt.Errorf("window days must be positive, got %d", c.WindowDays), faults.CategoryConfig)
	}
	return nil
}

// Service generates and persists status reports for repositories.
type Service struct {
	store   storage.Storage
	bundler *evidence.Bundler
	model   status.Model
	sink    Sink
	clock   clock.Clock
	cfg     Config
}

// NewService wires the reporting pipeline. A nil sink disables rendered
// output; persistence is unaffected.
func NewService(store storage.Storage, bundler *evidence.Bundler, model status.Model, sink Sink, clk clock.Clock, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{store: store, bundler: bundler, model: model, sink: sink, clock: clk, cfg: cfg}, nil
}

// ComputeNextWindow returns the half-open window the next report should
// cover: from the prior report's window end when one exists, otherwise
// the configured window length back from asOf.
func (s *Service) ComputeNextWindow(ctx context.Context, repositoryID string, asOf time.Time) (time.Time, time.Time, error) {
	prior, err := s.store.GetLatestReport(ctx, repositoryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return asOf.Add(-time.Duration(s.cfg.WindowDays) * 24 * time.Hour), asOf, nil
		}
		return time.Time{}, time.Time{}, fmt.Errorf("latest report: %w", err)
	}
	return prior.WindowEnd, asOf, nil
}

// RunForRepository generates the next report for a repository as of the
// given instant. It returns (nil, nil) when the window holds no
// uncovered activity.
func (s *Service) RunForRepository(ctx context.Context, owner, name string, asOf time.Time) (*types.Report, error) {
	repo, err := s.store.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("resolve repository %s/%s: %w", owner, name, err)
	}
	start, end, err := s.ComputeNextWindow(ctx, repo.ID, asOf)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, repo, start, end)
}

// GenerateReport is the explicit-window variant used by the on-demand
// API. Same empty-window contract as RunForRepository.
func (s *Service) GenerateReport(ctx context.Context, owner, name string, start, end time.Time) (*types.Report, error) {
	repo, err := s.store.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("resolve repository %s/%s: %w", owner, name, err)
	}
	return s.generate(ctx, repo, start, end)
}

func (s *Service) generate(ctx context.Context, repo *types.Repository, start, end time.Time) (*types.Report, error) {
	bundle, err := s.bundler.Build(ctx, repo.Owner, repo.Name, start, end)
	if err != nil {
		return nil, err
	}
	if bundle.TotalEventCount() == 0 {
		return nil, nil
	}

	slug := repo.Slug()
	logging.ReportStarted(slug, s.model.Name())

	result, err := s.model.Generate(ctx, bundle)
	if err != nil {
		logging.ReportFailed(slug, s.model.Name(), err)
		return nil, fmt.Errorf("status model: %w", err)
	}

	// Validation issues are surfaced, never silently repaired.
	if issues := Validate(bundle, result); len(issues) > 0 {
		log.WithFields(log.Fields{
			"event":     "reporting.report.validation",
			"repo_slug": slug,
			"model":     s.model.Name(),
			"issues":    issues,
		}).Warn("status result failed validation checks")
	}

	metrics := s.model.LastMetrics()
	report := &types.Report{
		ID:           ids.NewID(),
		Scope:        types.ScopeRepository,
		RepositoryID: repo.ID,
		WindowStart:  start,
		WindowEnd:    end,
		Model:        s.model.Name(),
		MachineSummary: types.MachineSummary{
			Status:     result.Status,
			Summary:    result.Summary,
			Highlights: result.Highlights,
			Risks:      result.Risks,
			NextSteps:  result.NextSteps,
		},
		LatencyMS:        metrics.LatencyMS,
		PromptTokens:     metrics.PromptTokens,
		CompletionTokens: metrics.CompletionTokens,
		GeneratedAt:      s.clock.Now(),
	}
	report.HumanText = RenderMarkdown(slug, report)

	if err := s.store.SaveReport(ctx, report, bundle.EventFactIDs); err != nil {
		logging.ReportFailed(slug, s.model.Name(), err)
		return nil, fmt.Errorf("persist report: %w", err)
	}
	logging.ReportCompleted(slug, s.model.Name(), report.LatencyMS, report.PromptTokens, report.CompletionTokens)

	// The report is durable at this point; sink trouble is operator
	// noise, not a failure.
	if s.sink != nil {
		if err := s.sink.Write(repo, report, report.HumanText); err != nil {
			log.WithFields(log.Fields{
				"event":     "reporting.sink.failed",
				"repo_slug": slug,
				"report_id": report.ID,
				"error":     err.Error(),
			}).Warn("report sink write failed")
		}
	}
	return report, nil
}
