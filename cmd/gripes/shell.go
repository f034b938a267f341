package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/gripes/internal/repl"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Explore saved clusters interactively",
	Long: `Start an interactive shell over the clusters in a store.

The shell supports:
- Ranking clusters and filtering by feature
- Showing a cluster with its example posts
- Asking which cluster a new complaint would join ('find <text>')

Type 'help' in the shell for available commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		storeFlag, _ := cmd.Flags().GetString("store")
		ctx := context.Background()

		path, err := resolveStorePath(storeFlag, cfg, true)
		if err != nil {
			return err
		}
		embedder, err := newEmbedder(cfg)
		if err != nil {
			return err
		}
		engine, store, _, err := loadEngine(ctx, path, cfg, embedder)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		r, err := repl.New(&repl.Config{
			Engine:   engine,
			Embedder: embedder,
			Product:  cfg.Product,
			Out:      cmd.OutOrStdout(),
		})
		if err != nil {
			return fmt.Errorf("failed to create shell: %w", err)
		}
		return r.Run(ctx)
	},
}

func init() {
	shellCmd.Flags().String("store", "", "Store to explore (default: discovered under .gripes/)")
	rootCmd.AddCommand(shellCmd)
}
