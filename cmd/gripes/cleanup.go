package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/gripes/internal/logging"
	"github.com/steveyegge/gripes/internal/storage"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Cleanup and maintenance commands",
	Long:  `Commands for pruning old run history and performing database maintenance.`,
}

var cleanupEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Prune old run events and run reports",
	Long: `Delete old run events according to the retention policy.

Runs four passes in sequence:
  1. Time-based: delete events older than the retention period
  2. Per-run: keep at most the configured number of events per run
  3. Global: enforce the global event count limit
  4. Runs: delete run reports (and their events) past run retention

Settings come from the retention: section of gripes.yaml and GRIPES_EVENT_* variables.
Default retention: 30 days (regular), 90 days (error), 5000 events/run, 200k global.

Examples:
  gripes cleanup events                # Prune with configured settings
  gripes cleanup events --vacuum       # Prune and reclaim disk space
  gripes cleanup events --dry-run      # Show counts and settings only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		vacuum, _ := cmd.Flags().GetBool("vacuum")
		storeFlag, _ := cmd.Flags().GetString("store")
		w := cmd.OutOrStdout()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		store, err := openHistory(storeFlag, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		retention := cfg.Retention
		if vacuum {
			retention.CleanupVacuum = true
		}

		fmt.Fprintf(w, "Event Retention Configuration:\n")
		fmt.Fprintf(w, "  Regular events: %d days\n", retention.RetentionDays)
		fmt.Fprintf(w, "  Error events: %d days\n", retention.RetentionErrorDays)
		fmt.Fprintf(w, "  Run reports: %d days\n", retention.RunRetentionDays)
		fmt.Fprintf(w, "  Per-run limit: %s events\n", formatLimit(retention.PerRunLimitEvents))
		fmt.Fprintf(w, "  Global limit: %s events\n", formatNumber(retention.GlobalLimitEvents))
		fmt.Fprintf(w, "  Batch size: %d events/statement\n", retention.CleanupBatchSize)
		fmt.Fprintln(w)

		before, err := store.GetEventCounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to get event counts: %w", err)
		}
		fmt.Fprintf(w, "Current state:\n")
		fmt.Fprintf(w, "  Total events: %s\n", formatNumber(before.TotalEvents))
		fmt.Fprintf(w, "  Runs with events: %s\n", formatNumber(len(before.EventsByRun)))
		fmt.Fprintln(w)

		if dryRun {
			fmt.Fprintf(w, "%s\n", color.YellowString("DRY RUN MODE - No events were deleted"))
			return nil
		}

		data, err := storage.Prune(ctx, store, retention, logging.WithPrefix("cleanup"))
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(w, "%s Cleanup complete\n", green("✓"))
		fmt.Fprintf(w, "  Time-based: %s\n", formatNumber(data.TimeBasedDeleted))
		fmt.Fprintf(w, "  Per-run limit: %s\n", formatNumber(data.PerRunDeleted))
		fmt.Fprintf(w, "  Global limit: %s\n", formatNumber(data.GlobalLimitDeleted))
		fmt.Fprintf(w, "  Runs deleted: %s\n", formatNumber(data.RunsDeleted))
		fmt.Fprintf(w, "  Events remaining: %s\n", formatNumber(data.EventsRemaining))
		fmt.Fprintf(w, "  Time taken: %s\n", (time.Duration(data.ProcessingTimeMs) * time.Millisecond).String())
		if data.VacuumRan {
			fmt.Fprintf(w, "%s VACUUM complete\n", green("✓"))
		} else if !vacuum {
			fmt.Fprintf(w, "\nNote: Use --vacuum to reclaim disk space\n")
		}
		return nil
	},
}

func init() {
	cleanupEventsCmd.Flags().String("store", "", "SQLite store (default: discovered under .gripes/)")
	cleanupEventsCmd.Flags().Bool("dry-run", false, "Show settings and counts without deleting")
	cleanupEventsCmd.Flags().Bool("vacuum", false, "Run VACUUM after cleanup to reclaim disk space")

	cleanupCmd.AddCommand(cleanupEventsCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// formatLimit formats an event limit where 0 means unlimited
func formatLimit(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return formatNumber(n)
}

// formatNumber formats a number with thousand separators
func formatNumber(n int) string {
	if n < 0 {
		return fmt.Sprintf("-%s", formatNumber(-n))
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	if n < 1000000000 {
		return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d,%03d", n/1000000000, (n/1000000)%1000, (n/1000)%1000, n%1000)
}
