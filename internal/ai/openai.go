package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/steveyegge/gripes/internal/logging"
)

// DefaultOpenAIModel is used when neither config nor GRIPES_OPENAI_MODEL names one
const DefaultOpenAIModel = "gpt-4o-mini"

const classifierInstructions = "You are a product feedback analyzer. Provide specific, meaningful feedback analysis in JSON format."

// classificationSchema is the strict structured-output schema for classificationResponse
var classificationSchema = generateSchema[classificationResponse]()

// OpenAIConfig holds OpenAI classifier configuration
type OpenAIConfig struct {
	APIKey          string      // OpenAI API key (if empty, reads from OPENAI_API_KEY env var)
	Model           string      // Model to use (default: GRIPES_OPENAI_MODEL or gpt-4o-mini)
	MaxOutputTokens int64       // Response token limit (default: 1024)
	BaseURL         string      // Optional API base URL override
	Retry           RetryConfig // Retry configuration (uses defaults if not specified)
}

// OpenAIClassifier classifies feedback with the OpenAI Responses API and a JSON schema
type OpenAIClassifier struct {
	promptClassifier
	client    openai.Client
	model     string
	maxTokens int64
}

// Compile-time check that OpenAIClassifier implements AspectClassifier
var _ AspectClassifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier creates a classifier backed by an OpenAI model
func NewOpenAIClassifier(cfg OpenAIConfig) (*OpenAIClassifier, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
	}
	model := cfg.Model
	if model == "" {
		model = os.Getenv("GRIPES_OPENAI_MODEL")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	maxTokens := cfg.MaxOutputTokens
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

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	c := &OpenAIClassifier{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
	c.promptClassifier = promptClassifier{
		provider: "openai",
		complete: c.send,
		retrier:  NewRetrier(retry),
		logger:   logging.WithPrefix("openai"),
	}
	return c, nil
}

// Model returns the model name in use
func (c *OpenAIClassifier) Model() string {
	return c.model
}

func (c *OpenAIClassifier) send(ctx context.Context, prompt string) (string, error) {
	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(c.maxTokens),
		Instructions:    openai.String(classifierInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "FeedbackClassification",
					Schema:      classificationSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Feature-level feedback aspects"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", err
	}
	c.logger.Debug("classify call", "input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
	return resp.OutputText(), nil
}

// generateSchema reflects T into a JSON schema that satisfies OpenAI strict mode:
// no $refs, no additional properties, every property required.
func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}
	var schema map[string]any
	if err := json.Unmarshal(b, &schema); err != nil {
		panic(err)
	}
	enforceStrict(schema)
	return schema
}

func enforceStrict(schema map[string]any) {
	delete(schema, "$schema")
	delete(schema, "$id")
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			schema["required"] = required
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				enforceStrict(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		enforceStrict(items)
	}
}
