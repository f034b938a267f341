package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/gripes/internal/events"
	"github.com/steveyegge/gripes/internal/pipeline"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past analysis runs",
	Long: `List the runs recorded in a SQLite store, newest first.

Examples:
  gripes runs
  gripes runs -n 50
  gripes runs events <run-id>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		storeFlag, _ := cmd.Flags().GetString("store")
		n, _ := cmd.Flags().GetInt("n")

		store, err := openHistory(storeFlag, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		runs, err := store.ListRuns(context.Background(), n)
		if err != nil {
			return err
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

var runsEventsCmd = &cobra.Command{
	Use:   "events <run-id>",
	Short: "Show the events of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storeFlag, _ := cmd.Flags().GetString("store")
		verbose, _ := cmd.Flags().GetBool("verbose")
		severity, _ := cmd.Flags().GetString("severity")

		store, err := openHistory(storeFlag, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		list, err := store.GetEvents(context.Background(), events.EventFilter{
			RunID:    args[0],
			Severity: events.EventSeverity(severity),
		})
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintf(w, "No events for run %s\n", args[0])
			return nil
		}
		for _, e := range list {
			if !shouldSkipEvent(e, verbose) {
				displayRunEvent(w, e)
			}
		}
		return nil
	},
}

// printRuns prints one line per run: start time, product, counts and status
func printRuns(w io.Writer, runs []*pipeline.RunReport) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	gray := color.New(color.FgHiBlack).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	for _, r := range runs {
		status := green("✓")
		if r.Partial {
			status = yellow("⚠")
		}
		fmt.Fprintf(w, "%s %s  %-20s %5s fetched %5s submitted %4d new %4d merged  %s\n",
			status,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			truncateString(r.Product, 20),
			formatNumber(r.Fetched),
			formatNumber(r.Submitted),
			r.Created,
			r.Merged,
			gray(r.RunID))
		if r.Partial && r.Error != "" {
			fmt.Fprintf(w, "  %s\n", gray(truncateString(r.Error, 70)))
		}
	}
}

func init() {
	runsCmd.PersistentFlags().String("store", "", "SQLite store (default: discovered under .gripes/)")
	runsCmd.Flags().IntP("n", "n", 20, "Number of runs (0 for all)")
	runsEventsCmd.Flags().BoolP("verbose", "v", false, "Include per-item decisions and skips")
	runsEventsCmd.Flags().String("severity", "", "Only events of this severity: info, warning, error")

	runsCmd.AddCommand(runsEventsCmd)
	rootCmd.AddCommand(runsCmd)
}
