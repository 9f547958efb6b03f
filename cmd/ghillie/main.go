// Command ghillie runs the repository-activity observability pipeline:
// ingestion, Silver transformation, report generation and the HTTP
// surface.
package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/leynos/ghillie/internal/config"
	"github.com/leynos/ghillie/internal/logging"
	"github.com/leynos/ghillie/internal/storage/sqlite"
	"github.com/leynos/ghillie/internal/telemetry"
)

var version = "dev"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "ghillie",
	Short:         "Repository-activity observability and status reporting",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Setup(cfg.LogLevel)
		if err := telemetry.Init(cmd.Context(), "ghillie", version); err != nil {
			log.WithError(err).Warn("telemetry init failed, continuing without")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		telemetry.Shutdown(cmd.Context())
	},
}

// openStore opens the configured database. Commands that need storage
// call this and fail cleanly in health-only mode.
func openStore(ctx context.Context) (*sqlite.Store, error) {
	if cfg.HealthOnly() {
		return nil, fmt.Errorf("GHILLIE_DATABASE_URL is not set")
	}
	return sqlite.New(ctx, cfg.DatabaseURL)
}

func main() {
	rootCmd.AddCommand(serveCmd, ingestCmd, transformCmd, reportCmd, healthCmd, reposCmd, showCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
