package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EventCounts holds event count statistics for monitoring
type EventCounts struct {
	TotalEvents      int
	EventsByRun      map[string]int
	EventsBySeverity map[string]int
	EventsByType     map[string]int
}

// CleanupEventsByAge deletes events older than the retention period.
// Regular events are deleted after retentionDays, error events after errorRetentionDays.
// Deletions are batched (batchSize events per statement).
func (s *SQLiteStore) CleanupEventsByAge(ctx context.Context, retentionDays, errorRetentionDays, batchSize int) (int, error) {
	if retentionDays < 0 || errorRetentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	totalDeleted := 0

	regularCutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted, err := s.deleteOldEventsBatch(ctx, regularCutoff, []string{"info", "warning"}, batchSize)
	if err != nil {
		return totalDeleted, fmt.Errorf("failed to delete old regular events: %w", err)
	}
	totalDeleted += deleted

	errorCutoff := time.Now().AddDate(0, 0, -errorRetentionDays)
	deleted, err = s.deleteOldEventsBatch(ctx, errorCutoff, []string{"error"}, batchSize)
	if err != nil {
		return totalDeleted, fmt.Errorf("failed to delete old error events: %w", err)
	}
	totalDeleted += deleted

	return totalDeleted, nil
}

func (s *SQLiteStore) deleteOldEventsBatch(ctx context.Context, cutoff time.Time, severities []string, batchSize int) (int, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(severities)), ", ")
	query := fmt.Sprintf(`
		DELETE FROM run_events
		WHERE id IN (
			SELECT id FROM run_events
			WHERE timestamp < ?
			AND severity IN (%s)
			ORDER BY timestamp ASC
			LIMIT ?
		)
	`, placeholders)

	args := []interface{}{formatTime(cutoff)}
	for _, sev := range severities {
		args = append(args, sev)
	}
	args = append(args, batchSize)

	return s.deleteInBatches(ctx, query, args, batchSize, -1)
}

// CleanupEventsByRunLimit keeps at most perRunLimit events per run.
// The oldest non-error events go first; error events are exempt. Zero means unlimited.
func (s *SQLiteStore) CleanupEventsByRunLimit(ctx context.Context, perRunLimit, batchSize int) (int, error) {
	if perRunLimit < 0 {
		return 0, fmt.Errorf("per-run limit cannot be negative")
	}
	if perRunLimit == 0 {
		return 0, nil
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, COUNT(*) AS event_count
		FROM run_events
		GROUP BY run_id
		HAVING event_count > ?
	`, perRunLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to query run event counts: %w", err)
	}

	type over struct {
		runID  string
		excess int
	}
	var runs []over
	for rows.Next() {
		var runID string
		var count int
		if err := rows.Scan(&runID, &count); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan run count: %w", err)
		}
		runs = append(runs, over{runID, count - perRunLimit})
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating run counts: %w", err)
	}

	totalDeleted := 0
	for _, r := range runs {
		deleted, err := s.deleteInBatches(ctx, `
			DELETE FROM run_events
			WHERE id IN (
				SELECT id FROM run_events
				WHERE run_id = ?
				AND severity != 'error'
				ORDER BY timestamp ASC
				LIMIT ?
			)
		`, []interface{}{r.runID, batchSize}, batchSize, r.excess)
		totalDeleted += deleted
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to delete events for run %s: %w", r.runID, err)
		}
	}
	return totalDeleted, nil
}

// CleanupEventsByGlobalLimit deletes the oldest non-error events until at most
// globalLimit events remain
func (s *SQLiteStore) CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error) {
	if globalLimit < 1 {
		return 0, fmt.Errorf("global limit must be at least 1")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	var currentCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_events").Scan(&currentCount); err != nil {
		return 0, fmt.Errorf("failed to get event count: %w", err)
	}
	if currentCount <= globalLimit {
		return 0, nil
	}

	return s.deleteInBatches(ctx, `
		DELETE FROM run_events
		WHERE id IN (
			SELECT id FROM run_events
			WHERE severity != 'error'
			ORDER BY timestamp ASC
			LIMIT ?
		)
	`, []interface{}{batchSize}, batchSize, currentCount-globalLimit)
}

// CleanupRunsByAge deletes runs that started before the retention period, with their events
func (s *SQLiteStore) CleanupRunsByAge(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	cutoff := formatTime(time.Now().AddDate(0, 0, -retentionDays))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM run_events
		WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)
	`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete events of old runs: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return int(n), nil
}

// deleteInBatches runs a DELETE whose last argument is the batch LIMIT until it removes
// fewer rows than asked, or until most rows are gone (most < 0 means no cap)
func (s *SQLiteStore) deleteInBatches(ctx context.Context, query string, args []interface{}, batchSize, most int) (int, error) {
	totalDeleted := 0
	for most < 0 || totalDeleted < most {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		limit := batchSize
		if most >= 0 && most-totalDeleted < limit {
			limit = most - totalDeleted
		}
		args[len(args)-1] = limit

		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to execute delete: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		totalDeleted += int(rowsAffected)

		if rowsAffected < int64(limit) {
			break
		}
	}
	return totalDeleted, nil
}

// GetEventCounts returns event count statistics for monitoring
func (s *SQLiteStore) GetEventCounts(ctx context.Context) (*EventCounts, error) {
	counts := &EventCounts{
		EventsByRun:      make(map[string]int),
		EventsBySeverity: make(map[string]int),
		EventsByType:     make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_events").Scan(&counts.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to get total event count: %w", err)
	}

	groups := []struct {
		column string
		dest   map[string]int
	}{
		{"run_id", counts.EventsByRun},
		{"severity", counts.EventsBySeverity},
		{"type", counts.EventsByType},
	}
	for _, g := range groups {
		if err := s.countBy(ctx, g.column, g.dest); err != nil {
			return nil, err
		}
	}
	return counts, nil
}

func (s *SQLiteStore) countBy(ctx context.Context, column string, dest map[string]int) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, COUNT(*) FROM run_events GROUP BY %s`, column, column))
	if err != nil {
		return fmt.Errorf("failed to query events by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		dest[key] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating %s counts: %w", column, err)
	}
	return nil
}

// VacuumDatabase runs VACUUM to reclaim disk space. It locks the database while it runs.
func (s *SQLiteStore) VacuumDatabase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
