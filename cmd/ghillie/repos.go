package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leynos/ghillie/internal/ids"
	"github.com/leynos/ghillie/internal/types"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Manage tracked repositories",
}

var (
	repoBranch   string
	repoDocPaths []string
	repoEstateID string
	repoDisabled bool
)

var reposAddCmd = &cobra.Command{
	Use:   "add <owner>/<name>",
	Short: "Register a repository for ingestion",
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

		repo, err := store.UpsertRepository(ctx, &types.Repository{
			ID:                 ids.NewID(),
			Owner:              owner,
			Name:               name,
			DefaultBranch:      repoBranch,
			IngestionEnabled:   !repoDisabled,
			DocumentationPaths: repoDocPaths,
			EstateID:           repoEstateID,
		})
		if err != nil {
			return err
		}
		fmt.Printf("registered %s (%s)\n", repo.Slug(), repo.ID)
		return nil
	},
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked repositories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		repos, err := store.ListRepositories(ctx)
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("no repositories registered")
			return nil
		}
		for _, repo := range repos {
			state := "enabled"
			if !repo.IngestionEnabled {
				state = "disabled"
			}
			line := fmt.Sprintf("%-40s %s  branch=%s", repo.Slug(), state, repo.DefaultBranch)
			if len(repo.DocumentationPaths) > 0 {
				line += "  docs=" + strings.Join(repo.DocumentationPaths, ",")
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	reposAddCmd.Flags().StringVar(&repoBranch, "branch", "main", "Default branch to ingest commits from")
	reposAddCmd.Flags().StringSliceVar(&repoDocPaths, "docs", nil, "Documentation paths to track for doc changes")
	reposAddCmd.Flags().StringVar(&repoEstateID, "estate", "", "Estate identifier for observability")
	reposAddCmd.Flags().BoolVar(&repoDisabled, "disabled", false, "Register without enabling ingestion")
	reposCmd.AddCommand(reposAddCmd, reposListCmd)
}
