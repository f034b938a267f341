package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoStore is returned by DiscoverStore when nothing was found
var ErrNoStore = errors.New("no store found")

// DiscoverStore finds the store commands should use when --store is not given.
//
// GRIPES_STORE wins when set (":memory:" included). Otherwise the current directory's
// .gripes/ is searched for a *.db, then a *.csv, in name order. Parent directories are
// not searched, so a project nested in another never picks up the outer one's clusters.
func DiscoverStore() (string, error) {
	if path := os.Getenv("GRIPES_STORE"); path != "" {
		return path, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return discoverStoreInDir(dir)
}

func discoverStoreInDir(dir string) (string, error) {
	gripesDir := filepath.Join(dir, ".gripes")
	entries, err := os.ReadDir(gripesDir)
	if err != nil {
		return "", fmt.Errorf("%w: no .gripes/ directory in %s\n"+
			"  Run 'gripes analyze <product> --store %s' to create one\n"+
			"  Or use --store to name a store explicitly",
			ErrNoStore, dir, DefaultPath)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, ext := range []string{".db", ".csv"} {
		for _, name := range names {
			if strings.HasSuffix(name, ext) {
				abs, err := filepath.Abs(filepath.Join(gripesDir, name))
				if err != nil {
					return "", fmt.Errorf("failed to get absolute path: %w", err)
				}
				return abs, nil
			}
		}
	}

	return "", fmt.Errorf("%w: no .gripes/*.db or .gripes/*.csv in %s", ErrNoStore, dir)
}
