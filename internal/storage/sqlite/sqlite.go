package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/gripes/internal/export"
	"github.com/steveyegge/gripes/internal/storage/migrations"
	"github.com/steveyegge/gripes/internal/types"
)

// SQLiteStore persists complaint rows, run history and run events in one SQLite file
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database at path.
// The special path ":memory:" opens a private in-memory database.
func New(path string) (*SQLiteStore, error) {
	dsn := "file::memory:"
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := migrations.NewManager(schemaMigrations...).Apply(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database path the store was opened with
func (s *SQLiteStore) Path() string {
	return s.path
}

// SchemaVersion returns the applied schema version
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	return migrations.Version(ctx, s.db)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the saved complaint rows in their saved order
func (s *SQLiteStore) Load(ctx context.Context) ([]export.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT summary, count, feature, feedback_type, sources, examples
		FROM complaints
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []export.Row
	for rows.Next() {
		var r export.Row
		var feature, fbType, sourcesJSON, examplesJSON string
		if err := rows.Scan(&r.Summary, &r.Count, &feature, &fbType, &sourcesJSON, &examplesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		r.Feature = types.ParseFeature(feature)
		r.FeedbackType = types.ParseFeedbackType(fbType)
		if sourcesJSON != "" && sourcesJSON != "{}" {
			if err := json.Unmarshal([]byte(sourcesJSON), &r.Sources); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sources for %q: %w", r.Summary, err)
			}
		}
		if examplesJSON != "" && examplesJSON != "[]" {
			if err := json.Unmarshal([]byte(examplesJSON), &r.Examples); err != nil {
				return nil, fmt.Errorf("failed to unmarshal examples for %q: %w", r.Summary, err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating complaint rows: %w", err)
	}
	return out, nil
}

// Save replaces the saved complaint rows in a single transaction
func (s *SQLiteStore) Save(ctx context.Context, rows []export.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM complaints`); err != nil {
		return fmt.Errorf("failed to clear complaints: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO complaints (position, summary, count, feature, feedback_type, sources, examples, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for i, r := range rows {
		sourcesJSON, err := json.Marshal(r.Sources)
		if err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
		examplesJSON, err := json.Marshal(r.Examples)
		if err != nil {
			return fmt.Errorf("failed to marshal examples: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, i, r.Summary, r.Count, string(r.Feature), string(r.FeedbackType),
			string(sourcesJSON), string(examplesJSON), formatTime(now)); err != nil {
			return fmt.Errorf("failed to insert complaint %q: %w", r.Summary, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
