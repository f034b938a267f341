package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultOllamaModel is a small local embedding model
const DefaultOllamaModel = "nomic-embed-text"

// OllamaConfig holds Ollama embedder configuration
type OllamaConfig struct {
	Host  string // default: http://localhost:11434
	Model string // default: nomic-embed-text
	// RequestsPerSecond limits calls to a shared local server (0 = 20/s)
	RequestsPerSecond float64
	Timeout           time.Duration
}

// OllamaEmbedder embeds text with a local Ollama server
type OllamaEmbedder struct {
	host       string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder for the Ollama /api/embed endpoint
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &OllamaEmbedder{
		host:       cfg.Host,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// Name returns "ollama/<model>"
func (o *OllamaEmbedder) Name() string {
	return ProviderOllama + "/" + o.model
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding for text
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, embedErr(o.Name(), fmt.Errorf("empty text"))
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, embedErr(o.Name(), err)
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: text})
	if err != nil {
		return nil, embedErr(o.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, embedErr(o.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, embedErr(o.Name(), fmt.Errorf("cannot connect to Ollama at %s: %w", o.host, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, embedErr(o.Name(), fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(msg)))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, embedErr(o.Name(), fmt.Errorf("failed to decode response: %w", err))
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, embedErr(o.Name(), fmt.Errorf("response contained no embeddings"))
	}
	return out.Embeddings[0], nil
}
