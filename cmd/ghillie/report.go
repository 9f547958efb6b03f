package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leynos/ghillie/internal/timeparsing"
)

var reportAsOf string

var reportCmd = &cobra.Command{
	Use:   "report <owner>/<name>",
	Short: "Generate and persist the next status report for a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, name, err := splitSlug(args[0])
		if err != nil {
			return err
		}
		asOf, err := timeparsing.ParseAsOf(reportAsOf, time.Now().UTC())
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		service, err := buildReportService(store)
		if err != nil {
			return err
		}

		generated, err := service.RunForRepository(ctx, owner, name, asOf)
		if err != nil {
			return err
		}
		if generated == nil {
			fmt.Println("no uncovered activity in the window, nothing to report")
			return nil
		}
		fmt.Printf("report %s (%s) for window %s to %s\n",
			generated.ID, generated.MachineSummary.Status,
			generated.WindowStart.Format(time.RFC3339),
			generated.WindowEnd.Format(time.RFC3339))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportAsOf, "as-of", "",
		`Report reference time: RFC3339, date, compact duration ("-2d") or natural language (default now)`)
}

func splitSlug(slug string) (string, string, error) {
	parts := strings.Split(slug, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected <owner>/<name>, got %q", slug)
	}
	return parts[0], parts[1], nil
}
