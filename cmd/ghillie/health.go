package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/health"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show per-repository ingestion lag",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		service, err := health.NewService(store, clock.System{}, cfg.Health())
		if err != nil {
			return err
		}
		lags, err := service.Lags(ctx)
		if err != nil {
			return err
		}
		if len(lags) == 0 {
			fmt.Println("no tracked repositories have ingestion offsets yet")
			return nil
		}

		for _, lag := range lags {
			state := "ok"
			if lag.IsStalled {
				state = "STALLED"
			}
			line := fmt.Sprintf("%-40s %s", lag.RepoExternalID, state)
			if lag.TimeSinceLastIngestion != nil {
				line += fmt.Sprintf("  last ingest %s ago", lag.TimeSinceLastIngestion.Round(time.Second))
			} else {
				line += "  never ingested"
			}
			if lag.HasPendingCursors {
				line += "  (resume cursors pending)"
			}
			fmt.Println(line)
		}
		return nil
	},
}
