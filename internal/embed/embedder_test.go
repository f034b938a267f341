package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gripes/internal/ai"
	"github.com/steveyegge/gripes/internal/deduplication"
	"github.com/steveyegge/gripes/internal/types"
)

func cosine(t *testing.T, a, b []float32) float64 {
	t.Helper()
	sim, ok := deduplication.CosineSimilarity(a, b)
	require.True(t, ok, "vectors should be comparable")
	return sim
}

func TestHashEmbedder(t *testing.T) {
	h := NewHashEmbedder(0)
	ctx := context.Background()
	assert.Equal(t, DefaultHashDimensions, h.Dimensions())
	assert.Equal(t, "hash/256", h.Name())

	a, err := h.Embed(ctx, "Battery drains too fast")
	require.NoError(t, err)
	require.Len(t, a, DefaultHashDimensions)

	again, err := h.Embed(ctx, "battery drains too FAST!")
	require.NoError(t, err)
	assert.Equal(t, a, again, "case and punctuation must not change the vector")

	close1, _ := h.Embed(ctx, "The battery drains fast")
	far, _ := h.Embed(ctx, "Camera photos look washed out")
	assert.InDelta(t, 1.0, cosine(t, a, close1), 1e-6, "stopwords are ignored")
	assert.Less(t, cosine(t, a, far), 0.5)

	var norm float64
	for _, x := range a {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	empty, err := h.Embed(ctx, "it is the")
	require.NoError(t, err)
	assert.True(t, deduplication.IsZero(empty))
}

func TestHashEmbedderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).Embed(ctx, "anything")
	assert.ErrorIs(t, err, types.ErrEmbedding)
	assert.ErrorIs(t, err, context.Canceled)
}

type countingEmbedder struct {
	calls atomic.Int32
	fail  bool
}

func (c *countingEmbedder) Name() string { return "counting" }

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.fail {
		return nil, embedErr("counting", errors.New("boom"))
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestCachingEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachingEmbedder(inner, 2)
	ctx := context.Background()

	v1, err := c.Embed(ctx, "abc")
	require.NoError(t, err)
	v1[0] = 99 // callers may mutate their copy

	v2, err := c.Embed(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, v2)
	assert.Equal(t, int32(1), inner.calls.Load())

	_, _ = c.Embed(ctx, "de")
	_, _ = c.Embed(ctx, "fgh") // evicts "abc"
	_, _ = c.Embed(ctx, "abc")
	assert.Equal(t, int32(4), inner.calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 4, misses)
	assert.Equal(t, "counting", c.Name())
}

func TestCachingEmbedderDoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{fail: true}
	c := NewCachingEmbedder(inner, 0)

	_, err := c.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, types.ErrEmbedding)
	_, err = c.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestOllamaEmbedder(t *testing.T) {
	var got ollamaEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer srv.Close()

	o := NewOllamaEmbedder(OllamaConfig{Host: srv.URL})
	vec, err := o.Embed(context.Background(), "Screen too dim")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, DefaultOllamaModel, got.Model)
	assert.Equal(t, "Screen too dim", got.Input)
	assert.Equal(t, "ollama/nomic-embed-text", o.Name())
}

func TestOllamaEmbedderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nope\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	o := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "nope"})
	_, err := o.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedding)
	assert.Contains(t, err.Error(), "status 404")

	_, err = o.Embed(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrEmbedding)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[]}`))
	}))
	defer empty.Close()

	_, err = NewOllamaEmbedder(OllamaConfig{Host: empty.URL}).Embed(context.Background(), "text")
	assert.ErrorIs(t, err, types.ErrEmbedding)
	assert.Contains(t, err.Error(), "no embeddings")
}

func TestOpenAIEmbedder(t *testing.T) {
	var calls atomic.Int32
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25,0.125]}],
			"usage":{"prompt_tokens":4,"total_tokens":4}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Retry: ai.RetryConfig{
			MaxRetries:        2,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Millisecond,
			BackoffMultiplier: 1,
			Timeout:           5 * time.Second,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "openai/text-embedding-3-small", e.Name())

	vec, err := e.Embed(context.Background(), "Overpriced for what you get")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 0.125}, vec)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "text-embedding-3-small", req["model"])
	assert.Equal(t, "Overpriced for what you get", req["input"])
}

func TestNew(t *testing.T) {
	e, err := New(Options{Provider: "hash", Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, "hash/32", e.Name())

	e, err = New(Options{Provider: "Ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama/nomic-embed-text", e.Name())

	_, err = New(Options{Provider: "word2vec"})
	assert.Error(t, err)

	t.Setenv("OPENAI_API_KEY", "")
	_, err = New(Options{Provider: "openai"})
	assert.Error(t, err)
}
