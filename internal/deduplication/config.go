package deduplication

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CentroidPolicy controls how a cluster's comparison vector evolves as items merge into it
type CentroidPolicy string

const (
	// CentroidRunningMean keeps the embedding at the mean of all merged vectors
	CentroidRunningMean CentroidPolicy = "running_mean"
	// CentroidFirstSeen keeps comparing against the vector of the item that seeded the cluster
	CentroidFirstSeen CentroidPolicy = "first_seen"
)

// IsValid checks if the policy value is valid
func (p CentroidPolicy) IsValid() bool {
	switch p {
	case CentroidRunningMean, CentroidFirstSeen:
		return true
	}
	return false
}

// Config holds configuration for the deduplication engine
type Config struct {
	// SimilarityThreshold is the minimum cosine similarity (0.0-1.0] to merge into a cluster
	// The comparison is inclusive: a score exactly at the threshold merges
	// Higher values = stricter deduplication, fewer merges, more distinct clusters
	// Default: 0.85
	SimilarityThreshold float64 `yaml:"threshold"`

	// ExamplesCap is how many example references each cluster keeps
	// When full, the oldest example is dropped
	// Default: 5
	ExamplesCap int `yaml:"examples_cap"`

	// Centroid selects the centroid update policy
	// Default: running_mean
	Centroid CentroidPolicy `yaml:"centroid"`

	// MinSummaryWords is the minimum number of words a cleaned text needs before
	// it is worth classifying. Shorter posts carry no usable opinion.
	// Default: 3
	MinSummaryWords int `yaml:"min_words"`
}

// DefaultConfig returns the default deduplication configuration
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.85,                // Same-complaint cutoff for text-embedding-3-small
		ExamplesCap:         5,                   // Five examples per cluster
		Centroid:            CentroidRunningMean, // Mean of merged vectors
		MinSummaryWords:     3,                   // Drop one- and two-word posts
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.SimilarityThreshold <= 0.0 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("similarity_threshold must be in (0.0, 1.0] (got %.4f)", c.SimilarityThreshold)
	}
	if c.ExamplesCap < 1 {
		return fmt.Errorf("examples_cap must be positive (got %d)", c.ExamplesCap)
	}
	if c.ExamplesCap > 100 {
		return fmt.Errorf("examples_cap too large (got %d, max 100)", c.ExamplesCap)
	}
	if !c.Centroid.IsValid() {
		return fmt.Errorf("invalid centroid policy: %q (want %s or %s)", c.Centroid, CentroidRunningMean, CentroidFirstSeen)
	}
	if c.MinSummaryWords < 0 {
		return fmt.Errorf("min_summary_words cannot be negative (got %d)", c.MinSummaryWords)
	}
	if c.MinSummaryWords > 50 {
		return fmt.Errorf("min_summary_words too large (got %d, max 50)", c.MinSummaryWords)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf("Config{Threshold: %.2f, ExamplesCap: %d, Centroid: %s, MinWords: %d}",
		c.SimilarityThreshold, c.ExamplesCap, c.Centroid, c.MinSummaryWords)
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - GRIPES_DEDUP_THRESHOLD: Minimum cosine similarity to merge (default: 0.85)
//   - GRIPES_DEDUP_EXAMPLES_CAP: Examples kept per cluster (default: 5)
//   - GRIPES_DEDUP_CENTROID: running_mean or first_seen (default: running_mean)
//   - GRIPES_DEDUP_MIN_WORDS: Minimum words in a cleaned post (default: 3)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvFloat("GRIPES_DEDUP_THRESHOLD", &cfg.SimilarityThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("GRIPES_DEDUP_EXAMPLES_CAP", &cfg.ExamplesCap); err != nil {
		return cfg, err
	}
	if v := strings.TrimSpace(os.Getenv("GRIPES_DEDUP_CENTROID")); v != "" {
		cfg.Centroid = CentroidPolicy(strings.ToLower(v))
	}
	if err := parseEnvInt("GRIPES_DEDUP_MIN_WORDS", &cfg.MinSummaryWords); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}

	return cfg, nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
