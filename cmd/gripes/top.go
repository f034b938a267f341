package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/gripes/internal/export"
	"github.com/steveyegge/gripes/internal/storage"
	"github.com/steveyegge/gripes/internal/types"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Print and export the largest clusters from a store",
	Long: `Read saved clusters from a store, print the N largest and write them to CSV.

No embeddings are needed: rows are read and ranked as stored.

Examples:
  gripes top                          # Top 10 from .gripes/, written to top_10_complaints.csv
  gripes top -n 25 --store gripes.db  # Top 25 from gripes.db
  gripes top --feature battery --out -  # Battery complaints only, CSV to stdout`,
	RunE: func(cmd *cobra.Command, args []string) error {
		storeFlag, _ := cmd.Flags().GetString("store")
		n, _ := cmd.Flags().GetInt("n")
		out, _ := cmd.Flags().GetString("out")
		feature, _ := cmd.Flags().GetString("feature")
		if n < 1 {
			return fmt.Errorf("-n must be positive (got %d)", n)
		}
		if !cmd.Flags().Changed("out") {
			out = fmt.Sprintf("top_%d_complaints.csv", n)
		}

		path, err := resolveStorePath(storeFlag, cfg, true)
		if err != nil {
			return err
		}
		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		rows, err := store.Load(context.Background())
		if err != nil {
			return err
		}
		if feature != "" {
			rows = export.FilterFeature(rows, types.ParseFeature(feature))
		}
		rows = export.Top(rankRows(rows), n)
		return printTop(cmd.OutOrStdout(), rows, n, out)
	},
}

// rankRows orders stored rows largest first, keeping stored order for ties.
// Rows without a summary are left out.
func rankRows(rows []export.Row) []export.Row {
	sorted := make([]export.Row, 0, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.Summary) != "" {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	return sorted
}

// printTop renders rows and writes them to out; "-" writes CSV to w instead of a table
func printTop(w io.Writer, rows []export.Row, n int, out string) error {
	if out == "-" {
		return export.WriteCSV(w, rows)
	}
	export.RenderTable(w, rows, export.RenderOptions{
		Title:       fmt.Sprintf("Top %d complaints", n),
		ShowSources: true,
	})
	if out == "" {
		return nil
	}
	if err := writeFile(out, func(f io.Writer) error { return export.WriteCSV(f, rows) }); err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(w, "\n%s Wrote %d rows to %s\n", green("✓"), len(rows), out)
	return nil
}

func init() {
	topCmd.Flags().String("store", "", "Store to read (default: discovered under .gripes/)")
	topCmd.Flags().IntP("n", "n", 10, "Number of clusters")
	topCmd.Flags().String("out", "", "CSV output file, \"-\" for stdout (default: top_<n>_complaints.csv)")
	topCmd.Flags().String("feature", "", "Only clusters for this feature")
	rootCmd.AddCommand(topCmd)
}
