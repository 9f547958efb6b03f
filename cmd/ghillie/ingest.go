package main

import (
	"github.com/spf13/cobra"

	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/ingest"
	"github.com/leynos/ghillie/internal/source/github"
)

var ingestConcurrency int

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion pass over every tracked repository",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		client, err := github.NewClient(cfg.GitHubToken)
		if err != nil {
			return err
		}
		cat, err := loadCatalogue()
		if err != nil {
			return err
		}

		worker, err := ingest.NewWorker(store, client, cat, clock.System{}, cfg.Ingest())
		if err != nil {
			return err
		}
		return worker.RunAll(ctx, ingestConcurrency)
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 4, "Parallel per-repository ingestion runs")
}
