package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/steveyegge/gripes/internal/config"
	"github.com/steveyegge/gripes/internal/events"
	"github.com/steveyegge/gripes/internal/storage/sqlite"
)

// Prune enforces the retention policy on run events and run history, then records an
// event_cleanup_completed event in the same database. A failed pass stops the prune and
// the returned data reports what was deleted before it.
func Prune(ctx context.Context, store *sqlite.SQLiteStore, cfg config.EventRetentionConfig, logger *log.Logger) (events.EventCleanupCompletedData, error) {
	start := time.Now()
	var data events.EventCleanupCompletedData

	fail := func(stage string, err error) (events.EventCleanupCompletedData, error) {
		err = fmt.Errorf("%s cleanup failed: %w", stage, err)
		data.ProcessingTimeMs = time.Since(start).Milliseconds()
		data.Error = err.Error()
		recordCleanup(ctx, store, data, logger)
		return data, err
	}

	deleted, err := store.CleanupEventsByAge(ctx, cfg.RetentionDays, cfg.RetentionErrorDays, cfg.CleanupBatchSize)
	if err != nil {
		return fail("time-based", err)
	}
	data.TimeBasedDeleted = deleted
	data.EventsDeleted += deleted

	deleted, err = store.CleanupEventsByRunLimit(ctx, cfg.PerRunLimitEvents, cfg.CleanupBatchSize)
	if err != nil {
		return fail("per-run limit", err)
	}
	data.PerRunDeleted = deleted
	data.EventsDeleted += deleted

	// Trim to 95% of the global limit so the next run has headroom
	deleted, err = store.CleanupEventsByGlobalLimit(ctx, int(float64(cfg.GlobalLimitEvents)*0.95), cfg.CleanupBatchSize)
	if err != nil {
		return fail("global limit", err)
	}
	data.GlobalLimitDeleted = deleted
	data.EventsDeleted += deleted

	runs, err := store.CleanupRunsByAge(ctx, cfg.RunRetentionDays)
	if err != nil {
		return fail("run history", err)
	}
	data.RunsDeleted = runs

	if cfg.CleanupVacuum && (data.EventsDeleted > 0 || data.RunsDeleted > 0) {
		if err := store.VacuumDatabase(ctx); err != nil {
			logger.Warn("VACUUM failed", "err", err)
		} else {
			data.VacuumRan = true
		}
	}

	if counts, err := store.GetEventCounts(ctx); err != nil {
		logger.Warn("failed to count remaining events", "err", err)
	} else {
		data.EventsRemaining = counts.TotalEvents
	}

	data.ProcessingTimeMs = time.Since(start).Milliseconds()
	data.Success = true
	recordCleanup(ctx, store, data, logger)

	if data.EventsDeleted > 0 || data.RunsDeleted > 0 {
		logger.Info("event cleanup",
			"deleted", data.EventsDeleted,
			"time_based", data.TimeBasedDeleted,
			"per_run", data.PerRunDeleted,
			"global_limit", data.GlobalLimitDeleted,
			"runs", data.RunsDeleted,
			"remaining", data.EventsRemaining,
			"vacuum", data.VacuumRan,
			"ms", data.ProcessingTimeMs)
	}
	return data, nil
}

func recordCleanup(ctx context.Context, store *sqlite.SQLiteStore, data events.EventCleanupCompletedData, logger *log.Logger) {
	severity := events.SeverityInfo
	message := fmt.Sprintf("Event cleanup completed: %d events, %d runs deleted", data.EventsDeleted, data.RunsDeleted)
	if !data.Success {
		severity = events.SeverityError
		message = "Event cleanup failed: " + data.Error
	}
	e, err := events.NewEvent(events.EventTypeEventCleanupCompleted, "", severity, message, data)
	if err != nil {
		logger.Warn("failed to build cleanup event", "err", err)
		return
	}
	if err := store.StoreEvent(ctx, e); err != nil {
		logger.Warn("failed to store cleanup event", "err", err)
	}
}

// RunPruneLoop prunes once immediately and then every cfg.CleanupInterval until ctx is done.
// Invalid or disabled retention settings turn the loop into a no-op.
func RunPruneLoop(ctx context.Context, store *sqlite.SQLiteStore, cfg config.EventRetentionConfig, logger *log.Logger) {
	if err := cfg.Validate(); err != nil {
		logger.Error("event cleanup disabled: invalid configuration", "err", err)
		return
	}
	if !cfg.CleanupEnabled {
		logger.Debug("event cleanup disabled via configuration")
		return
	}

	ticker := time.NewTicker(cfg.CleanupInterval())
	defer ticker.Stop()

	logger.Debug("event cleanup started", "interval", cfg.CleanupInterval(), "retention_days", cfg.RetentionDays,
		"per_run_limit", cfg.PerRunLimitEvents, "global_limit", cfg.GlobalLimitEvents)

	if _, err := Prune(ctx, store, cfg, logger); err != nil {
		logger.Error("initial event cleanup failed", "err", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := Prune(ctx, store, cfg, logger); err != nil {
				logger.Error("event cleanup failed", "err", err)
			}
		}
	}
}
