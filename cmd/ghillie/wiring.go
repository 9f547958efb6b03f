package main

import (
	"fmt"

	"github.com/leynos/ghillie/internal/catalogue"
	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/evidence"
	"github.com/leynos/ghillie/internal/report"
	"github.com/leynos/ghillie/internal/status"
	"github.com/leynos/ghillie/internal/storage"
)

// loadCatalogue reads the optional catalogue file. No path means no
// catalogue, which degrades noise filtering and project linkage to
// their safe defaults.
func loadCatalogue() (catalogue.Catalogue, error) {
	if cfg.CataloguePath == "" {
		return nil, nil
	}
	return catalogue.LoadFile(cfg.CataloguePath)
}

// buildStatusModel constructs the configured status model backend.
func buildStatusModel() (status.Model, error) {
	backend := cfg.StatusModelBackend
	if backend == "" {
		return nil, fmt.Errorf("GHILLIE_STATUS_MODEL_BACKEND is not set")
	}
	return status.New(backend, cfg.OpenAI(), cfg.Anthropic())
}

// buildReportService assembles bundler, model and sink into the
// reporting service.
func buildReportService(store storage.Storage) (*report.Service, error) {
	model, err := buildStatusModel()
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalogue()
	if err != nil {
		return nil, err
	}

	var sink report.Sink
	if cfg.ReportSinkPath != "" {
		sink = report.NewFilesystemSink(cfg.ReportSinkPath)
	}
	clk := clock.System{}
	bundler := evidence.NewBundler(store, cat, clk)
	return report.NewService(store, bundler, model, sink, clk, cfg.Reporting())
}
