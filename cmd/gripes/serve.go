package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/gripes/internal/logging"
	"github.com/steveyegge/gripes/internal/server"
	"github.com/steveyegge/gripes/internal/storage"
	"github.com/steveyegge/gripes/internal/storage/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve saved clusters over a read-only HTTP API",
	Long: `Load clusters from a store and serve them as JSON and CSV.

Endpoints:
  GET /healthz
  GET /api/clusters?limit=&feature=
  GET /api/clusters/{id}
  GET /api/matrix
  GET /api/top?n=
  GET /api/stats
  GET /api/export.csv?granularity=cluster|item
  GET /api/matrix.csv
  GET /api/match?q=
  GET /api/runs              (SQLite stores only)
  GET /api/runs/{id}/events  (SQLite stores only)

With a SQLite store, old run events are pruned on the retention schedule while serving.

Examples:
  gripes serve
  gripes serve --store .gripes/gripes.db --addr 127.0.0.1:9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		storeFlag, _ := cmd.Flags().GetString("store")
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}
		logger := logging.WithPrefix("serve")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		path, err := resolveStorePath(storeFlag, cfg, true)
		if err != nil {
			return err
		}
		embedder, err := newEmbedder(cfg)
		if err != nil {
			return err
		}
		engine, store, state, err := loadEngine(ctx, path, cfg, embedder)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		opts := server.Options{
			Product:  cfg.Product,
			Embedder: embedder,
			Logger:   logging.WithPrefix("http"),
		}
		if history, ok := store.(*sqlite.SQLiteStore); ok {
			opts.History = history
			go storage.RunPruneLoop(ctx, history, cfg.Retention, logging.WithPrefix("cleanup"))
		}

		srv, err := server.New(engine, opts)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s Loaded %d clusters (%d items) from %s\n", green("✓"), state.Clusters, state.Items, cyan(path))
		fmt.Fprintf(cmd.OutOrStdout(), "  Listening on %s (Ctrl+C to stop)\n", cyan(addr))
		logger.Debug("serving", "store", path, "addr", addr, "embedder", embedder.Name())

		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("store", "", "Store to serve (default: discovered under .gripes/)")
	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}
