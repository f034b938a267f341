package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/gripes/internal/ai"
	"github.com/steveyegge/gripes/internal/config"
	"github.com/steveyegge/gripes/internal/deduplication"
	"github.com/steveyegge/gripes/internal/embed"
	"github.com/steveyegge/gripes/internal/export"
	"github.com/steveyegge/gripes/internal/pipeline"
	"github.com/steveyegge/gripes/internal/sources"
	"github.com/steveyegge/gripes/internal/types"
)

var matrixCmd = &cobra.Command{
	Use:   "matrix [product]",
	Short: "Build the feedback matrix offline from a JSON Lines file",
	Long: `Run the whole pipeline over a JSON Lines file without any network calls.

Each line is {"text": ..., "title": ..., "url": ..., "source": ..., "created_at": ...}.
Items are classified with keyword rules and embedded with the hashing embedder unless
--classifier / --embedder pick a hosted provider.

Examples:
  gripes matrix --in feedback.jsonl
  gripes matrix "Pixel 9" --in feedback.jsonl --out matrix.csv --top 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, _ := cmd.Flags().GetString("in")
		if in == "" {
			return fmt.Errorf("--in is required")
		}
		product := cfg.Product
		if len(args) > 0 {
			product = args[0]
		}
		if product == "" {
			product = "product"
		}
		if cmd.Flags().Changed("classifier") {
			cfg.Classifier.Provider, _ = cmd.Flags().GetString("classifier")
		} else {
			cfg.Classifier.Provider = config.ClassifierKeyword
		}
		if cmd.Flags().Changed("embedder") {
			cfg.Embedder.Provider, _ = cmd.Flags().GetString("embedder")
		} else {
			cfg.Embedder.Provider = embed.ProviderHash
		}
		if cmd.Flags().Changed("threshold") {
			cfg.Dedup.SimilarityThreshold, _ = cmd.Flags().GetFloat64("threshold")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		out, _ := cmd.Flags().GetString("out")
		top, _ := cmd.Flags().GetInt("top")

		classifier, err := newClassifier(cfg)
		if err != nil {
			return err
		}
		embedder, err := newEmbedder(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return runOffline(ctx, cmd.OutOrStdout(), product, in, classifier, embedder, out, top)
	},
}

// runOffline clusters the file at in and prints the matrix; out receives the matrix CSV
func runOffline(ctx context.Context, w io.Writer, product, in string, classifier ai.Classifier, embedder embed.Embedder, out string, top int) error {
	engine, err := deduplication.NewEngine(cfg.Dedup)
	if err != nil {
		return err
	}
	pcfg := cfg.PipelineConfig()
	pcfg.Product = product
	pcfg.Limit = 1000 // the largest limit the pipeline accepts

	p, err := pipeline.New(engine, classifier, embedder, []sources.Source{sources.NewFileSource(in)}, pcfg)
	if err != nil {
		return err
	}
	report, runErr := p.Run(ctx)
	if msg, ok := report.SourceErrors[types.SourceFile]; ok {
		return fmt.Errorf("failed to read %s: %s", in, msg)
	}

	clusters, matrix := engine.Snapshot()
	if top > 0 {
		export.RenderTable(w, export.Top(export.ClusterRows(clusters), top), export.RenderOptions{
			Title:       fmt.Sprintf("Top %d complaints", top),
			ShowSources: true,
		})
	}
	export.RenderMatrix(w, matrix, export.RenderOptions{Title: fmt.Sprintf("Feedback matrix for %s", product)})
	printRunSummary(w, report)

	if out != "" {
		if err := writeFile(out, func(f io.Writer) error { return export.WriteMatrixCSV(f, matrix) }); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(w, "%s Wrote matrix to %s\n", green("✓"), out)
	}
	return runErr
}

func init() {
	matrixCmd.Flags().String("in", "", "JSON Lines input file (required)")
	matrixCmd.Flags().String("out", "", "Write the matrix to this CSV file")
	matrixCmd.Flags().Int("top", 10, "Also print the N largest clusters (0 to skip)")
	matrixCmd.Flags().String("classifier", config.ClassifierKeyword, "Classifier: keyword, anthropic or openai")
	matrixCmd.Flags().String("embedder", embed.ProviderHash, "Embedder: hash, openai or ollama")
	matrixCmd.Flags().Float64("threshold", deduplication.DefaultConfig().SimilarityThreshold, "Cosine similarity needed to merge into a cluster")
	rootCmd.AddCommand(matrixCmd)
}
