package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/steveyegge/gripes/internal/pipeline"
)

// RecordRun stores a run report. Recording the same run twice replaces it.
func (s *SQLiteStore) RecordRun(ctx context.Context, report *pipeline.RunReport) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("run report must have an ID")
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	partial := 0
	if report.Partial {
		partial = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, product, started_at, finished_at, fetched, submitted,
			created, merged, skipped, partial, error, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.Product,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		report.Fetched,
		report.Submitted,
		report.Created,
		report.Merged,
		report.SkippedTotal(),
		partial,
		report.Error,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", report.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent run reports, newest first. A non-positive limit returns all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*pipeline.RunReport, error) {
	query := `SELECT report FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*pipeline.RunReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		var r pipeline.RunReport
		if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run report: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return out, nil
}
