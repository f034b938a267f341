// Package config loads gripes settings from a YAML file and GRIPES_* environment
// variables. Precedence, lowest first: defaults, file, environment, command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/gripes/internal/ai"
	"github.com/steveyegge/gripes/internal/deduplication"
	"github.com/steveyegge/gripes/internal/embed"
	"github.com/steveyegge/gripes/internal/pipeline"
	"github.com/steveyegge/gripes/internal/sources"
	"github.com/steveyegge/gripes/internal/types"
)

// DefaultFile is read from the working directory when no --config is given
const DefaultFile = "gripes.yaml"

// Classifier providers
const (
	ClassifierAnthropic = "anthropic"
	ClassifierOpenAI    = "openai"
	ClassifierKeyword   = "keyword"
)

// Config is the full gripes configuration
type Config struct {
	Product   string   `yaml:"product"`
	Query     string   `yaml:"query,omitempty"`
	Sources   []string `yaml:"sources"`
	Input     string   `yaml:"input,omitempty"` // JSONL file for the file source
	Limit     int      `yaml:"limit"`
	Workers   int      `yaml:"workers"`
	QueueSize int      `yaml:"queue_size"`
	Store     string   `yaml:"store,omitempty"`

	Dedup      deduplication.Config `yaml:"dedup"`
	Classifier ClassifierConfig     `yaml:"classifier"`
	Embedder   EmbedderConfig       `yaml:"embedder"`
	Reddit     RedditConfig         `yaml:"reddit"`
	YouTube    YouTubeConfig        `yaml:"youtube"`
	RSS        RSSConfig            `yaml:"rss"`
	Server     ServerConfig         `yaml:"server"`
	Retry      ai.RetryConfig       `yaml:"retry"`
	Retention  EventRetentionConfig `yaml:"retention"`

	// Keys never come from the file
	Keys APIKeys `yaml:"-"`
}

// ClassifierConfig selects the feedback classifier
type ClassifierConfig struct {
	Provider string `yaml:"provider"` // anthropic, openai or keyword
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// EmbedderConfig selects the embedding backend
type EmbedderConfig struct {
	Provider   string `yaml:"provider"` // openai, ollama or hash
	Model      string `yaml:"model,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	CacheSize  int    `yaml:"cache_size"`
}

// RedditConfig tunes the Reddit connector
type RedditConfig struct {
	Subreddits      []string `yaml:"subreddits,omitempty"`
	CommentsPerPost int      `yaml:"comments_per_post"`
	RequestsPerSec  float64  `yaml:"requests_per_sec"`
}

// YouTubeConfig tunes the YouTube connector
type YouTubeConfig struct {
	CommentsPerVideo int `yaml:"comments_per_video"`
}

// RSSConfig points the RSS connector at a feed; %s is replaced by the escaped query
type RSSConfig struct {
	URL string `yaml:"url,omitempty"`
}

// ServerConfig configures `gripes serve`
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// APIKeys holds credentials read from the environment
type APIKeys struct {
	Anthropic       string
	OpenAI          string
	YouTube         string
	TwitterBearer   string
	RedditUserAgent string
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Sources:   []string{"reddit", "youtube"},
		Limit:     25,
		Workers:   4,
		QueueSize: 64,
		Dedup:     deduplication.DefaultConfig(),
		Classifier: ClassifierConfig{
			Provider: ClassifierAnthropic,
		},
		Embedder: EmbedderConfig{
			Provider:  embed.ProviderOpenAI,
			CacheSize: 4096,
		},
		Reddit: RedditConfig{
			CommentsPerPost: 25,
			RequestsPerSec:  1,
		},
		YouTube: YouTubeConfig{
			CommentsPerVideo: 10,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Retry:     ai.DefaultRetryConfig(),
		Retention: DefaultEventRetentionConfig(),
	}
}

// Load builds the configuration from defaults, the YAML file at path, and the environment.
// An empty path reads DefaultFile if it exists. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file; defaults and environment only
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// decode merges YAML over the current values. Unknown keys are rejected.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from GRIPES_* variables and reads API keys
func (c *Config) ApplyEnv() error {
	parseEnvString("GRIPES_PRODUCT", &c.Product)
	parseEnvString("GRIPES_QUERY", &c.Query)
	parseEnvList("GRIPES_SOURCES", &c.Sources)
	parseEnvString("GRIPES_INPUT", &c.Input)
	parseEnvString("GRIPES_STORE", &c.Store)
	parseEnvString("GRIPES_CLASSIFIER", &c.Classifier.Provider)
	parseEnvString("GRIPES_CLASSIFIER_MODEL", &c.Classifier.Model)
	parseEnvString("GRIPES_EMBEDDER", &c.Embedder.Provider)
	parseEnvString("GRIPES_EMBED_MODEL", &c.Embedder.Model)
	parseEnvString("GRIPES_EMBED_BASE_URL", &c.Embedder.BaseURL)
	parseEnvString("GRIPES_RSS_URL", &c.RSS.URL)
	parseEnvString("GRIPES_SERVER_ADDR", &c.Server.Addr)
	parseEnvList("GRIPES_REDDIT_SUBREDDITS", &c.Reddit.Subreddits)

	ints := []struct {
		key  string
		dest *int
	}{
		{"GRIPES_LIMIT", &c.Limit},
		{"GRIPES_WORKERS", &c.Workers},
		{"GRIPES_QUEUE_SIZE", &c.QueueSize},
		{"GRIPES_EMBED_DIMENSIONS", &c.Embedder.Dimensions},
		{"GRIPES_EMBED_CACHE_SIZE", &c.Embedder.CacheSize},
		{"GRIPES_DEDUP_EXAMPLES_CAP", &c.Dedup.ExamplesCap},
		{"GRIPES_DEDUP_MIN_WORDS", &c.Dedup.MinSummaryWords},
	}
	for _, v := range ints {
		if err := parseEnvInt(v.key, v.dest); err != nil {
			return err
		}
	}
	if err := parseEnvFloat("GRIPES_DEDUP_THRESHOLD", &c.Dedup.SimilarityThreshold); err != nil {
		return err
	}
	if v := strings.TrimSpace(os.Getenv("GRIPES_DEDUP_CENTROID")); v != "" {
		c.Dedup.Centroid = deduplication.CentroidPolicy(strings.ToLower(v))
	}
	if err := c.Retention.applyEnv(); err != nil {
		return err
	}

	c.Keys = APIKeys{
		Anthropic:       os.Getenv("ANTHROPIC_API_KEY"),
		OpenAI:          os.Getenv("OPENAI_API_KEY"),
		YouTube:         os.Getenv("YOUTUBE_API_KEY"),
		TwitterBearer:   os.Getenv("TWITTER_BEARER_TOKEN"),
		RedditUserAgent: os.Getenv("REDDIT_USER_AGENT"),
	}
	return nil
}

// Validate checks ranges and provider names. Product is not required here because
// commands may take it as an argument.
func (c *Config) Validate() error {
	if c.Limit < 1 || c.Limit > 1000 {
		return fmt.Errorf("limit must be between 1 and 1000 (got %d)", c.Limit)
	}
	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64 (got %d)", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be positive (got %d)", c.QueueSize)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	for _, name := range c.Sources {
		switch types.ParseSource(name) {
		case types.SourceReddit, types.SourceYouTube, types.SourceTwitter, types.SourceRSS, types.SourceFile:
		default:
			return fmt.Errorf("unknown source %q (want reddit, youtube, twitter, rss or file)", name)
		}
	}

	switch strings.ToLower(c.Classifier.Provider) {
	case ClassifierAnthropic, ClassifierOpenAI, ClassifierKeyword:
	default:
		return fmt.Errorf("unknown classifier provider %q (want %s, %s or %s)",
			c.Classifier.Provider, ClassifierAnthropic, ClassifierOpenAI, ClassifierKeyword)
	}
	switch strings.ToLower(c.Embedder.Provider) {
	case embed.ProviderOpenAI, embed.ProviderOllama, embed.ProviderHash:
	default:
		return fmt.Errorf("unknown embedding provider %q (want %s, %s or %s)",
			c.Embedder.Provider, embed.ProviderOpenAI, embed.ProviderOllama, embed.ProviderHash)
	}
	if c.Embedder.Dimensions < 0 {
		return fmt.Errorf("embedder dimensions cannot be negative (got %d)", c.Embedder.Dimensions)
	}
	if c.Embedder.CacheSize < 0 {
		return fmt.Errorf("embedder cache_size cannot be negative (got %d)", c.Embedder.CacheSize)
	}
	if c.Reddit.CommentsPerPost < 0 || c.Reddit.CommentsPerPost > 500 {
		return fmt.Errorf("reddit comments_per_post must be between 0 and 500 (got %d)", c.Reddit.CommentsPerPost)
	}
	if c.YouTube.CommentsPerVideo < 0 || c.YouTube.CommentsPerVideo > 100 {
		return fmt.Errorf("youtube comments_per_video must be between 0 and 100 (got %d)", c.YouTube.CommentsPerVideo)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server addr is required")
	}

	if err := c.Dedup.Validate(); err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Retention.Validate(); err != nil {
		return fmt.Errorf("retention: %w", err)
	}
	return nil
}

// PipelineConfig returns the pipeline settings
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Product:   c.Product,
		Query:     c.Query,
		Limit:     c.Limit,
		Workers:   c.Workers,
		QueueSize: c.QueueSize,
		MinWords:  c.Dedup.MinSummaryWords,
	}
}

// SourceOptions returns connector settings with credentials filled in
func (c *Config) SourceOptions() sources.Options {
	return sources.Options{
		Reddit: sources.RedditConfig{
			Subreddits:      c.Reddit.Subreddits,
			CommentsPerPost: c.Reddit.CommentsPerPost,
			UserAgent:       c.Keys.RedditUserAgent,
			RequestsPerSec:  c.Reddit.RequestsPerSec,
		},
		YouTube: sources.YouTubeConfig{
			APIKey:           c.Keys.YouTube,
			CommentsPerVideo: c.YouTube.CommentsPerVideo,
		},
		Twitter: sources.TwitterConfig{
			BearerToken: c.Keys.TwitterBearer,
		},
		RSSURL: c.RSS.URL,
		File:   c.Input,
	}
}

// EmbedOptions returns embedder settings with the API key filled in
func (c *Config) EmbedOptions() embed.Options {
	return embed.Options{
		Provider:   c.Embedder.Provider,
		Model:      c.Embedder.Model,
		APIKey:     c.Keys.OpenAI,
		BaseURL:    c.Embedder.BaseURL,
		Dimensions: c.Embedder.Dimensions,
	}
}

// YAML renders the configuration as it would be written to gripes.yaml
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// KeyStatus reports which credentials are present, by environment variable name
func (k APIKeys) KeyStatus() map[string]bool {
	return map[string]bool{
		"ANTHROPIC_API_KEY":    k.Anthropic != "",
		"OPENAI_API_KEY":       k.OpenAI != "",
		"YOUTUBE_API_KEY":      k.YouTube != "",
		"TWITTER_BEARER_TOKEN": k.TwitterBearer != "",
		"REDDIT_USER_AGENT":    k.RedditUserAgent != "",
	}
}
