package sources

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/steveyegge/gripes/internal/types"
)

// FileSource replays feedback from a JSON Lines file, one object per line:
//
//	{"text": "...", "title": "...", "url": "...", "source": "reddit", "created_at": "2025-03-01T10:00:00Z"}
//
// Lines naming no source are attributed to "file". Blank lines and lines starting
// with # are ignored. The query is not used for filtering.
type FileSource struct {
	path string
}

var _ Source = (*FileSource)(nil)

// NewFileSource creates a connector over a JSONL file
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns types.SourceFile
func (f *FileSource) Name() types.Source { return types.SourceFile }

type fileLine struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Author    string    `json:"author"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Fetch reads up to limit items (0 = all) in file order
func (f *FileSource) Fetch(ctx context.Context, query string, limit int) ([]types.RawItem, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var items []types.RawItem
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return items, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var l fileLine
		if err := json.Unmarshal([]byte(line), &l); err != nil {
			return items, fmt.Errorf("%s:%d: %w", f.path, lineNo, err)
		}
		source := types.SourceFile
		if l.Source != "" {
			source = types.ParseSource(l.Source)
		}
		it, ok := newItem(source, l.Title, l.Text, l.URL, l.Author, l.CreatedAt)
		if !ok {
			continue
		}
		if l.ID != "" {
			it.ID = l.ID
		}
		items = append(items, it)
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return items, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	return items, nil
}
