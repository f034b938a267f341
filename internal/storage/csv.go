package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/steveyegge/gripes/internal/export"
)

// CSVStore keeps rows in the same CSV layout the exporter writes, so an exported
// top-complaints file can be resumed from directly.
type CSVStore struct {
	path string
}

// NewCSVStore returns a store backed by the file at path. The file need not exist yet.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads the file. A missing file is an empty store.
func (s *CSVStore) Load(ctx context.Context) ([]export.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := export.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return rows, nil
}

// Save writes to a temporary file next to the target and renames it into place
func (s *CSVStore) Save(ctx context.Context, rows []export.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := export.WriteCSV(tmp, rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op; files are only open during Load and Save
func (s *CSVStore) Close() error {
	return nil
}
