package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leynos/ghillie/internal/silver"
)

var transformLimit int

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Promote pending Bronze events into Silver facts and entities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		stats, err := silver.NewTransformer(store).ProcessPending(ctx, transformLimit)
		if err != nil {
			return err
		}
		fmt.Printf("processed %d events (%d failed)\n", stats.Processed, stats.Failed)
		return nil
	},
}

func init() {
	transformCmd.Flags().IntVar(&transformLimit, "limit", 0, "Maximum events to process (0 = all pending)")
}
