package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steveyegge/gripes/internal/events"
)

// timeFormat is fixed-width so stored timestamps sort and compare as text
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

var _ events.EventStore = (*SQLiteStore)(nil)

// StoreEvent stores a run event
func (s *SQLiteStore) StoreEvent(ctx context.Context, event *events.RunEvent) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_events (id, type, timestamp, run_id, severity, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		string(event.Type),
		formatTime(event.Timestamp),
		event.RunID,
		string(event.Severity),
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store run event (type=%s, run=%s): %w", event.Type, event.RunID, err)
	}
	return nil
}

// GetEvents retrieves events matching the filter, oldest first
func (s *SQLiteStore) GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.RunEvent, error) {
	query := `
		SELECT id, type, timestamp, run_id, severity, message, data
		FROM run_events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, formatTime(filter.AfterTime))
	}

	query += " ORDER BY timestamp ASC, rowid ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// GetRecentEvents retrieves the newest events up to limit, newest first
func (s *SQLiteStore) GetRecentEvents(ctx context.Context, limit int) ([]*events.RunEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, timestamp, run_id, severity, message, data
		FROM run_events
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent run events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*events.RunEvent, error) {
	var result []*events.RunEvent

	for rows.Next() {
		var event events.RunEvent
		var eventType, severity, timestamp, dataJSON string

		if err := rows.Scan(&event.ID, &eventType, &timestamp, &event.RunID, &severity, &event.Message, &dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run event: %w", err)
		}
		event.Type = events.EventType(eventType)
		event.Severity = events.EventSeverity(severity)

		ts, err := parseTime(timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp on event %s: %w", event.ID, err)
		}
		event.Timestamp = ts

		event.Data = make(map[string]interface{})
		if dataJSON != "" && dataJSON != "{}" && dataJSON != "null" {
			if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		result = append(result, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run event rows: %w", err)
	}
	return result, nil
}
