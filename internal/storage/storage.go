// Package storage persists complaint clusters between runs.
//
// Only (summary, count, feature, feedback type) rows are kept, never embeddings. Resuming
// re-embeds every summary with the current provider and restores it into an engine.
package storage

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/steveyegge/gripes/internal/export"
	"github.com/steveyegge/gripes/internal/storage/sqlite"
)

// DefaultPath is where analyze keeps its database when no store is given
const DefaultPath = ".gripes/gripes.db"

// Store loads and saves complaint rows
type Store interface {
	Load(ctx context.Context) ([]export.Row, error)
	// Save replaces everything previously saved
	Save(ctx context.Context, rows []export.Row) error
	Close() error
}

// Open picks a backend from the path: ".csv" files get a CSVStore, anything else
// (including ":memory:") a SQLite database.
func Open(path string) (Store, error) {
	if IsCSV(path) {
		return NewCSVStore(path), nil
	}
	s, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// IsCSV reports whether path names a CSV store
func IsCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(path)), ".csv")
}
