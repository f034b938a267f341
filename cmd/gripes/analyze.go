package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/gripes/internal/config"
	"github.com/steveyegge/gripes/internal/deduplication"
	"github.com/steveyegge/gripes/internal/events"
	"github.com/steveyegge/gripes/internal/export"
	"github.com/steveyegge/gripes/internal/logging"
	"github.com/steveyegge/gripes/internal/pipeline"
	"github.com/steveyegge/gripes/internal/sources"
	"github.com/steveyegge/gripes/internal/storage"
	"github.com/steveyegge/gripes/internal/storage/sqlite"
	"github.com/steveyegge/gripes/internal/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [product]",
	Short: "Collect, classify and cluster feedback for a product",
	Long: `Fetch posts and comments about a product, classify each one by feature and
feedback type, and merge near-duplicate complaints into clusters.

Results are printed as a ranked table plus a feature x feedback-type matrix and
written to CSV. With --store the clusters are saved to a SQLite database (.db) or a
CSV file (.csv); --resume loads them first so the new run merges into them.

Examples:
  gripes analyze "Nothing Phone 3a"
  gripes analyze "Pixel 9" --sources reddit,rss --posts 50
  gripes analyze "Pixel 9" --store .gripes/gripes.db --resume --verify`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			cfg.Product = args[0]
		}
		if cfg.Product == "" {
			return fmt.Errorf("product is required (argument, product: in gripes.yaml, or GRIPES_PRODUCT)")
		}

		flags := cmd.Flags()
		if flags.Changed("sources") {
			s, _ := flags.GetString("sources")
			cfg.Sources = parseSourceList(s)
		}
		if flags.Changed("posts") {
			cfg.Limit, _ = flags.GetInt("posts")
		}
		if flags.Changed("threshold") {
			cfg.Dedup.SimilarityThreshold, _ = flags.GetFloat64("threshold")
		}
		if flags.Changed("input") {
			cfg.Input, _ = flags.GetString("input")
		}
		if flags.Changed("classifier") {
			cfg.Classifier.Provider, _ = flags.GetString("classifier")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		opts := analyzeOptions{}
		opts.out, _ = flags.GetString("out")
		opts.matrixOut, _ = flags.GetString("matrix-out")
		opts.store, _ = flags.GetString("store")
		opts.resume, _ = flags.GetBool("resume")
		opts.top, _ = flags.GetInt("top")
		opts.verify, _ = flags.GetBool("verify")
		opts.verbose, _ = flags.GetBool("verbose")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runAnalyze(ctx, cmd.OutOrStdout(), opts)
	},
}

type analyzeOptions struct {
	out       string
	matrixOut string
	store     string
	resume    bool
	top       int
	verify    bool
	verbose   bool
}

func runAnalyze(ctx context.Context, w io.Writer, opts analyzeOptions) error {
	logger := logging.WithPrefix("analyze")
	cyan := color.New(color.FgCyan).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	classifier, err := newClassifier(cfg)
	if err != nil {
		return err
	}
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	srcs, err := sources.Build(cfg.Sources, cfg.SourceOptions())
	if err != nil {
		return fmt.Errorf("failed to build sources: %w", err)
	}
	engine, err := deduplication.NewEngine(cfg.Dedup)
	if err != nil {
		return err
	}

	storePath := opts.store
	if storePath == "" {
		storePath = cfg.Store
	}
	if storePath == "" && opts.resume {
		if storePath, err = resolveStorePath("", cfg, true); err != nil {
			return err
		}
	}

	var store storage.Store
	if storePath != "" {
		lockPath, err := storage.AcquireLock(storePath, version)
		if err != nil {
			return err
		}
		defer func() { _ = storage.ReleaseLock(lockPath) }()

		store, err = storage.Open(storePath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if opts.resume {
			state, err := storage.Resume(ctx, store, embedder, engine)
			if err != nil {
				return fmt.Errorf("failed to resume from %s: %w", storePath, err)
			}
			fmt.Fprintf(w, "%s Resumed %d clusters (%d items) from %s\n", green("✓"), state.Clusters, state.Items, cyan(storePath))
			if state.Skipped > 0 {
				fmt.Fprintf(w, "  %s %d stored rows could not be restored\n", yellow("⚠"), state.Skipped)
			}
		} else if existing, err := store.Load(ctx); err == nil && len(existing) > 0 {
			fmt.Fprintf(w, "%s %s already holds %d clusters; this run replaces them (use --resume to add to them)\n",
				yellow("⚠"), cyan(storePath), len(existing))
		}
	}

	pcfg := cfg.PipelineConfig()
	p, err := pipeline.New(engine, classifier, embedder, srcs, pcfg)
	if err != nil {
		return err
	}
	p.SetObserver(events.Tee(
		events.LogObserver(logger),
		func(e *events.RunEvent) {
			if !shouldSkipEvent(e, opts.verbose) {
				displayRunEvent(w, e)
			}
		},
	))
	sqliteStore, _ := store.(*sqlite.SQLiteStore)
	if sqliteStore != nil {
		p.SetEventStore(sqliteStore)
	}

	fmt.Fprintf(w, "\nAnalyzing %s with %s and %s\n\n", cyan(cfg.Product), classifierName(cfg), embedder.Name())
	report, runErr := p.Run(ctx)
	canceled := errors.Is(runErr, context.Canceled)

	clusters, matrix := engine.Snapshot()
	rows := export.ClusterRows(clusters)
	export.RenderTable(w, export.Top(rows, opts.top), export.RenderOptions{
		Title:       fmt.Sprintf("Top %d complaints about %s", opts.top, cfg.Product),
		ShowSources: true,
	})
	export.RenderMatrix(w, matrix, export.RenderOptions{Title: "Feedback matrix"})
	printRunSummary(w, report)

	if opts.out != "" {
		if err := writeFile(opts.out, func(f io.Writer) error { return export.WriteCSV(f, rows) }); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s Wrote %d clusters to %s\n", green("✓"), len(rows), cyan(opts.out))
	}
	if opts.matrixOut != "" {
		if err := writeFile(opts.matrixOut, func(f io.Writer) error { return export.WriteMatrixCSV(f, matrix) }); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s Wrote matrix to %s\n", green("✓"), cyan(opts.matrixOut))
	}

	// Persist with a fresh context so an interrupted run still saves what it merged
	saveCtx := context.WithoutCancel(ctx)
	if store != nil {
		state, err := storage.Checkpoint(saveCtx, store, engine)
		if err != nil {
			return fmt.Errorf("failed to save clusters: %w", err)
		}
		fmt.Fprintf(w, "%s Saved %d clusters (%d items) to %s\n", green("✓"), state.Clusters, state.Items, cyan(storePath))
	}
	if sqliteStore != nil {
		if err := sqliteStore.RecordRun(saveCtx, report); err != nil {
			logger.Warn("failed to record run", "run", report.RunID, "err", err)
		}
		if cfg.Retention.CleanupEnabled {
			if _, err := storage.Prune(saveCtx, sqliteStore, cfg.Retention, logger); err != nil {
				logger.Warn("event cleanup failed", "err", err)
			}
		}
	}

	if opts.verify {
		if err := engine.CheckConsistency(); err != nil {
			return fmt.Errorf("consistency check failed: %w", err)
		}
		fmt.Fprintf(w, "%s Matrix matches clusters\n", green("✓"))
	}

	if canceled {
		fmt.Fprintf(w, "%s Run interrupted; partial results were kept\n", yellow("⚠"))
		return nil
	}
	return runErr
}

// classifierName labels the classifier for the run banner, e.g. "anthropic/claude-3-5-haiku"
func classifierName(c *config.Config) string {
	if c.Classifier.Model == "" {
		return c.Classifier.Provider
	}
	return c.Classifier.Provider + "/" + c.Classifier.Model
}

// printRunSummary prints fetch counts per source, source failures and skip reasons
func printRunSummary(w io.Writer, report *pipeline.RunReport) {
	if report == nil {
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", bold("Run summary"))
	fmt.Fprintf(w, "  Run:       %s (%s)\n", report.RunID, report.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  Fetched:   %s", formatNumber(report.Fetched))
	if len(report.BySource) > 0 {
		names := make([]types.Source, 0, len(report.BySource))
		for s := range report.BySource {
			names = append(names, s)
		}
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
		fmt.Fprint(w, " (")
		for i, s := range names {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprintf(w, "%s %d", s, report.BySource[s])
		}
		fmt.Fprint(w, ")")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Submitted: %s (%d new clusters, %d merged)\n", formatNumber(report.Submitted), report.Created, report.Merged)

	if total := report.SkippedTotal(); total > 0 {
		reasons := make([]string, 0, len(report.Skipped))
		for r := range report.Skipped {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		fmt.Fprintf(w, "  Skipped:   %s\n", formatNumber(total))
		for _, r := range reasons {
			fmt.Fprintf(w, "    %-20s %d\n", r, report.Skipped[r])
		}
	}
	failed := make([]types.Source, 0, len(report.SourceErrors))
	for s := range report.SourceErrors {
		failed = append(failed, s)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	for _, s := range failed {
		fmt.Fprintf(w, "  %s %s: %s\n", red("✗"), s, report.SourceErrors[s])
	}
	if report.Partial && report.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", red("Stopped:"), report.Error)
	}
	fmt.Fprintln(w)
}

func init() {
	analyzeCmd.Flags().String("sources", "", "Comma-separated sources: reddit, youtube, twitter, rss, file (default from config)")
	analyzeCmd.Flags().Int("posts", 25, "Items to request from each source")
	analyzeCmd.Flags().Float64("threshold", deduplication.DefaultConfig().SimilarityThreshold, "Cosine similarity needed to merge into a cluster")
	analyzeCmd.Flags().String("input", "", "JSON Lines file for the file source")
	analyzeCmd.Flags().String("classifier", "", "Classifier: anthropic, openai or keyword (default from config)")
	analyzeCmd.Flags().String("out", "complaints.csv", "Write ranked clusters to this CSV file (empty to skip)")
	analyzeCmd.Flags().String("matrix-out", "", "Write the feature x feedback-type matrix to this CSV file")
	analyzeCmd.Flags().String("store", "", "Save clusters to a .db (SQLite) or .csv store, replacing what it holds unless --resume is set")
	analyzeCmd.Flags().Bool("resume", false, "Load clusters from the store before running")
	analyzeCmd.Flags().Int("top", 10, "Number of clusters to print")
	analyzeCmd.Flags().Bool("verify", false, "Recompute the matrix from the clusters and compare")
	analyzeCmd.Flags().BoolP("verbose", "v", false, "Show every cluster decision and skipped item")
	rootCmd.AddCommand(analyzeCmd)
}
