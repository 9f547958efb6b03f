package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/report"
	"github.com/leynos/ghillie/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (health probes and on-demand reports)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var reports *report.Service
		if !cfg.HealthOnly() {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if cfg.StatusModelBackend != "" {
				reports, err = buildReportService(store)
				if err != nil {
					return err
				}
			}
		}
		if reports == nil {
			log.Info("running in health-only mode")
		}

		srv := server.NewServer(server.Config{Reports: reports, Clock: clock.System{}})

		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", cfg.ListenAddr()).Info("http server listening")
			errCh <- srv.Start(cfg.ListenAddr())
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
