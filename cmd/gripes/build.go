package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/gripes/internal/ai"
	"github.com/steveyegge/gripes/internal/config"
	"github.com/steveyegge/gripes/internal/deduplication"
	"github.com/steveyegge/gripes/internal/embed"
	"github.com/steveyegge/gripes/internal/events"
	"github.com/steveyegge/gripes/internal/storage"
	"github.com/steveyegge/gripes/internal/storage/sqlite"
)

// newClassifier builds the classifier named by the configuration
func newClassifier(c *config.Config) (ai.Classifier, error) {
	switch strings.ToLower(c.Classifier.Provider) {
	case config.ClassifierAnthropic:
		cl, err := ai.NewAnthropicClassifier(ai.AnthropicConfig{
			APIKey:  c.Keys.Anthropic,
			Model:   c.Classifier.Model,
			BaseURL: c.Classifier.BaseURL,
			Retry:   c.Retry,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic classifier: %w", err)
		}
		return cl, nil
	case config.ClassifierOpenAI:
		cl, err := ai.NewOpenAIClassifier(ai.OpenAIConfig{
			APIKey:  c.Keys.OpenAI,
			Model:   c.Classifier.Model,
			BaseURL: c.Classifier.BaseURL,
			Retry:   c.Retry,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create openai classifier: %w", err)
		}
		return cl, nil
	case config.ClassifierKeyword:
		return ai.KeywordClassifier{}, nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider)
	}
}

// newEmbedder builds the configured embedder, memoized when cache_size > 0
func newEmbedder(c *config.Config) (embed.Embedder, error) {
	e, err := embed.New(c.EmbedOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if c.Embedder.CacheSize > 0 {
		return embed.NewCachingEmbedder(e, c.Embedder.CacheSize), nil
	}
	return e, nil
}

// resolveStorePath picks the store: the flag, then the config, then a store found
// under ./.gripes. Returns "" when there is none and required is false.
func resolveStorePath(flag string, c *config.Config, required bool) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if c != nil && c.Store != "" {
		return c.Store, nil
	}
	path, err := storage.DiscoverStore()
	if err == nil {
		return path, nil
	}
	if errors.Is(err, storage.ErrNoStore) && !required {
		return "", nil
	}
	return "", err
}

// loadEngine opens the store at path and rebuilds an engine from it.
// The caller owns the returned store.
func loadEngine(ctx context.Context, path string, c *config.Config, emb embed.Embedder) (*deduplication.Engine, storage.Store, events.StateData, error) {
	engine, err := deduplication.NewEngine(c.Dedup)
	if err != nil {
		return nil, nil, events.StateData{}, err
	}
	store, err := storage.Open(path)
	if err != nil {
		return nil, nil, events.StateData{}, err
	}
	state, err := storage.Resume(ctx, store, emb, engine)
	if err != nil {
		_ = store.Close()
		return nil, nil, events.StateData{}, err
	}
	return engine, store, state, nil
}

// writeFile creates path (and its directory) and fills it with write
func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// parseSourceList splits a comma-separated --sources value
func parseSourceList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// openHistory opens the SQLite store that holds run history and events
func openHistory(flag string, c *config.Config) (*sqlite.SQLiteStore, error) {
	path, err := resolveStorePath(flag, c, true)
	if err != nil {
		return nil, err
	}
	if storage.IsCSV(path) {
		return nil, fmt.Errorf("%s is a CSV store; run history needs a SQLite store (.db)", path)
	}
	return sqlite.New(path)
}
