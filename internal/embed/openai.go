package embed

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/steveyegge/gripes/internal/ai"
	"github.com/steveyegge/gripes/internal/logging"
)

// DefaultOpenAIModel is the embedding model used when none is configured
const DefaultOpenAIModel = openai.EmbeddingModelTextEmbedding3Small

// OpenAIConfig holds OpenAI embedder configuration
type OpenAIConfig struct {
	APIKey     string         // if empty, reads OPENAI_API_KEY
	Model      string         // default: text-embedding-3-small
	BaseURL    string         // optional API base URL override
	Dimensions int            // optional output size for text-embedding-3 models
	Retry      ai.RetryConfig // uses ai.DefaultRetryConfig() if zero
}

// OpenAIEmbedder embeds text with the OpenAI embeddings endpoint
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
	retrier    *ai.Retrier
	logger     *log.Logger
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder backed by OpenAI
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
	}
	model := cfg.Model
	if model == "" {
		model = string(DefaultOpenAIModel)
	}
	if cfg.Dimensions < 0 {
		return nil, fmt.Errorf("dimensions cannot be negative (got %d)", cfg.Dimensions)
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.Timeout == 0 {
		retry = ai.DefaultRetryConfig()
	}
	if err := retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEmbedder{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: cfg.Dimensions,
		retrier:    ai.NewRetrier(retry),
		logger:     logging.WithPrefix("embed"),
	}, nil
}

// Name returns "openai/<model>"
func (e *OpenAIEmbedder) Name() string {
	return ProviderOpenAI + "/" + e.model
}

// Embed returns the embedding for text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, embedErr(e.Name(), fmt.Errorf("empty text"))
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	var vec []float32
	err := e.retrier.Do(ctx, "openai embed", func(attemptCtx context.Context) error {
		resp, err := e.client.Embeddings.New(attemptCtx, params)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("response contained no embeddings")
		}
		vec = toFloat32(resp.Data[0].Embedding)
		e.logger.Debug("embedded", "model", e.model, "tokens", resp.Usage.TotalTokens, "dim", len(vec))
		return nil
	})
	if err != nil {
		return nil, embedErr(e.Name(), err)
	}
	return vec, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
