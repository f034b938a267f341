// Package embed maps summary text to dense vectors for similarity matching.
//
// Every provider returns errors that wrap types.ErrEmbedding, so callers can
// skip the item and count it without knowing which backend is configured.
package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/steveyegge/gripes/internal/types"
)

// Embedder turns one text into a vector. Vectors from one Embedder always have the same length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Name identifies the provider and model, e.g. "openai/text-embedding-3-small"
	Name() string
}

// Provider names accepted by New
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

// Options selects and configures a provider for New
type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	// Dimensions is only honoured by HashEmbedder and OpenAI's text-embedding-3 models
	Dimensions int
}

// New builds the embedder named by opts.Provider
func New(opts Options) (Embedder, error) {
	switch strings.ToLower(opts.Provider) {
	case ProviderOpenAI, "":
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     opts.APIKey,
			Model:      opts.Model,
			BaseURL:    opts.BaseURL,
			Dimensions: opts.Dimensions,
		})
	case ProviderOllama:
		return NewOllamaEmbedder(OllamaConfig{Host: opts.BaseURL, Model: opts.Model}), nil
	case ProviderHash:
		return NewHashEmbedder(opts.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (want openai, ollama or hash)", opts.Provider)
	}
}

// CachingEmbedder memoizes another Embedder by exact text.
// Restoring persisted clusters and re-running a product re-embed many identical summaries.
type CachingEmbedder struct {
	next Embedder

	mu      sync.Mutex
	entries map[string][]float32
	order   []string
	limit   int
	hits    int
	misses  int
}

// NewCachingEmbedder wraps next with a FIFO cache of at most limit entries (0 = 4096)
func NewCachingEmbedder(next Embedder, limit int) *CachingEmbedder {
	if limit <= 0 {
		limit = 4096
	}
	return &CachingEmbedder{next: next, entries: make(map[string][]float32), limit: limit}
}

// Name returns the wrapped embedder's name
func (c *CachingEmbedder) Name() string {
	return c.next.Name()
}

// Embed returns a cached copy when the text has been embedded before
func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	if v, ok := c.entries[text]; ok {
		c.hits++
		c.mu.Unlock()
		return append([]float32(nil), v...), nil
	}
	c.misses++
	c.mu.Unlock()

	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[text]; !ok {
		if len(c.order) >= c.limit {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, text)
	}
	c.entries[text] = append([]float32(nil), v...)
	return v, nil
}

// Stats returns cache hits and misses so far
func (c *CachingEmbedder) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func embedErr(provider string, err error) error {
	return &types.EmbeddingError{Provider: provider, Err: err}
}
