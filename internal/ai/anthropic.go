package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/steveyegge/gripes/internal/logging"
)

// Anthropic model constants
//
// Classification is a short, structured task, so the cheaper model is the default.
// Environment variable override:
// - GRIPES_ANTHROPIC_MODEL: Override the classification model
const (
	// ModelSonnet is the high-end model, useful for noisy or multilingual sources
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelHaiku is the cost-efficient default
	ModelHaiku = "claude-3-5-haiku-20241022"
)

// GetAnthropicModel returns the classification model, checking GRIPES_ANTHROPIC_MODEL first
func GetAnthropicModel() string {
	if model := os.Getenv("GRIPES_ANTHROPIC_MODEL"); model != "" {
		return model
	}
	return ModelHaiku
}

// AnthropicConfig holds Anthropic classifier configuration
type AnthropicConfig struct {
	APIKey    string      // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model     string      // Model to use (default: GetAnthropicModel())
	MaxTokens int         // Response token limit (default: 1024)
	BaseURL   string      // Optional API base URL override
	Retry     RetryConfig // Retry configuration (uses defaults if not specified)
}

// AnthropicClassifier classifies feedback with the Anthropic Messages API
type AnthropicClassifier struct {
	promptClassifier
	client    anthropic.Client
	model     string
	maxTokens int
}

// Compile-time check that AnthropicClassifier implements AspectClassifier
var _ AspectClassifier = (*AnthropicClassifier)(nil)

// NewAnthropicClassifier creates a classifier backed by Claude
func NewAnthropicClassifier(cfg AnthropicConfig) (*AnthropicClassifier, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetAnthropicModel()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.Timeout == 0 {
		retry = DefaultRetryConfig()
	}
	if err := retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	// Retries happen in Retrier so the breaker sees every failure
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	c := &AnthropicClassifier{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
	c.promptClassifier = promptClassifier{
		provider: "anthropic",
		complete: c.send,
		retrier:  NewRetrier(retry),
		logger:   logging.WithPrefix("anthropic"),
	}
	return c, nil
}

// Model returns the model name in use
func (c *AnthropicClassifier) Model() string {
	return c.model
}

func (c *AnthropicClassifier) send(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	response, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	c.logger.Debug("classify call",
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
		"duration", time.Since(start))
	return text, nil
}
