package main

import (
	"errors"
	"fmt"

	"charm.land/glamour/v2"
	"github.com/spf13/cobra"

	"github.com/leynos/ghillie/internal/storage"
)

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show <owner>/<name>",
	Short: "Render a repository's latest status report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, name, err := splitSlug(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		repo, err := store.GetRepository(ctx, owner, name)
		if err != nil {
			return err
		}
		latest, err := store.GetLatestReport(ctx, repo.ID)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Printf("no reports yet for %s\n", repo.Slug())
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Print(renderMarkdown(latest.HumanText))
		return nil
	},
}

// renderMarkdown renders for the terminal, falling back to raw text
// when the renderer cannot be constructed.
func renderMarkdown(markdown string) string {
	if showRaw {
		return markdown
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return markdown
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print raw Markdown without terminal styling")
}
