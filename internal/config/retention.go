package config

import (
	"fmt"
	"time"
)

// EventRetentionConfig holds configuration for pruning run history from a SQLite store
type EventRetentionConfig struct {
	// RetentionDays is the retention period for info and warning events (in days)
	// Default: 30, Range: 1-365
	RetentionDays int `yaml:"retention_days"`

	// RetentionErrorDays is the retention period for error events (in days)
	// Aborted runs are kept longer so failures can be compared
	// Must be >= RetentionDays
	// Default: 90, Range: 1-730
	RetentionErrorDays int `yaml:"retention_error_days"`

	// RunRetentionDays is how long run reports are kept; a run's events go with it
	// Default: 180, Range: 1-3650
	RunRetentionDays int `yaml:"run_retention_days"`

	// PerRunLimitEvents is the maximum number of events kept per run
	// Per-item create and merge events dominate large runs
	// Set to 0 for unlimited
	// Default: 5000, Range: 0 or 100-100000
	PerRunLimitEvents int `yaml:"per_run_limit_events"`

	// GlobalLimitEvents is the maximum total number of events to keep
	// Default: 200000, Range: 1000-5000000
	GlobalLimitEvents int `yaml:"global_limit_events"`

	// CleanupIntervalHours is how often `gripes serve` prunes (in hours)
	// Default: 24, Range: 1-168 (1 week)
	CleanupIntervalHours int `yaml:"cleanup_interval_hours"`

	// CleanupBatchSize is the number of events deleted per statement
	// Default: 1000, Range: 100-10000
	CleanupBatchSize int `yaml:"cleanup_batch_size"`

	// CleanupEnabled controls whether pruning runs after each analysis and in serve mode
	// Default: true
	CleanupEnabled bool `yaml:"cleanup_enabled"`

	// CleanupVacuum controls whether to run VACUUM after pruning
	// Default: false
	CleanupVacuum bool `yaml:"cleanup_vacuum"`
}

// DefaultEventRetentionConfig returns the default event retention configuration
func DefaultEventRetentionConfig() EventRetentionConfig {
	return EventRetentionConfig{
		RetentionDays:        30,
		RetentionErrorDays:   90,
		RunRetentionDays:     180,
		PerRunLimitEvents:    5000,
		GlobalLimitEvents:    200000,
		CleanupIntervalHours: 24,
		CleanupBatchSize:     1000,
		CleanupEnabled:       true,
		CleanupVacuum:        false,
	}
}

// Validate checks if the configuration has valid values
func (c EventRetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("retention_days must be between 1 and 365 (got %d)", c.RetentionDays)
	}

	if c.RetentionErrorDays < 1 || c.RetentionErrorDays > 730 {
		return fmt.Errorf("retention_error_days must be between 1 and 730 (got %d)",
			c.RetentionErrorDays)
	}
	if c.RetentionErrorDays < c.RetentionDays {
		return fmt.Errorf("retention_error_days (%d) must be >= retention_days (%d)",
			c.RetentionErrorDays, c.RetentionDays)
	}

	if c.RunRetentionDays < 1 || c.RunRetentionDays > 3650 {
		return fmt.Errorf("run_retention_days must be between 1 and 3650 (got %d)", c.RunRetentionDays)
	}

	// 0 = unlimited, or 100-100000
	if c.PerRunLimitEvents < 0 {
		return fmt.Errorf("per_run_limit_events cannot be negative (got %d)", c.PerRunLimitEvents)
	}
	if c.PerRunLimitEvents > 0 && c.PerRunLimitEvents < 100 {
		return fmt.Errorf("per_run_limit_events must be 0 (unlimited) or >= 100 (got %d)",
			c.PerRunLimitEvents)
	}
	if c.PerRunLimitEvents > 100000 {
		return fmt.Errorf("per_run_limit_events too large (got %d, max 100000)", c.PerRunLimitEvents)
	}

	if c.GlobalLimitEvents < 1000 {
		return fmt.Errorf("global_limit_events must be at least 1000 (got %d)", c.GlobalLimitEvents)
	}
	if c.GlobalLimitEvents > 5000000 {
		return fmt.Errorf("global_limit_events too large (got %d, max 5000000)", c.GlobalLimitEvents)
	}

	if c.CleanupIntervalHours < 1 {
		return fmt.Errorf("cleanup_interval_hours must be at least 1 (got %d)", c.CleanupIntervalHours)
	}
	if c.CleanupIntervalHours > 168 {
		return fmt.Errorf("cleanup_interval_hours too large (got %d, max 168)", c.CleanupIntervalHours)
	}

	if c.CleanupBatchSize < 100 {
		return fmt.Errorf("cleanup_batch_size must be at least 100 (got %d)", c.CleanupBatchSize)
	}
	if c.CleanupBatchSize > 10000 {
		return fmt.Errorf("cleanup_batch_size too large (got %d, max 10000)", c.CleanupBatchSize)
	}

	return nil
}

// CleanupInterval returns the pruning interval as a time.Duration
func (c EventRetentionConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalHours) * time.Hour
}

// String returns a human-readable representation of the config
func (c EventRetentionConfig) String() string {
	return fmt.Sprintf(
		"EventRetentionConfig{RetentionDays: %d, RetentionErrorDays: %d, RunRetentionDays: %d, "+
			"PerRunLimit: %d, GlobalLimit: %d, CleanupInterval: %dh, "+
			"BatchSize: %d, Enabled: %t, Vacuum: %t}",
		c.RetentionDays, c.RetentionErrorDays, c.RunRetentionDays,
		c.PerRunLimitEvents, c.GlobalLimitEvents, c.CleanupIntervalHours,
		c.CleanupBatchSize, c.CleanupEnabled, c.CleanupVacuum,
	)
}

// applyEnv overrides fields from environment variables
//
// Environment variables:
//   - GRIPES_EVENT_RETENTION_DAYS: Retention for info and warning events in days (default: 30)
//   - GRIPES_EVENT_RETENTION_ERROR_DAYS: Retention for error events in days (default: 90)
//   - GRIPES_RUN_RETENTION_DAYS: Retention for run reports in days (default: 180)
//   - GRIPES_EVENT_PER_RUN_LIMIT: Maximum events per run, 0 for unlimited (default: 5000)
//   - GRIPES_EVENT_GLOBAL_LIMIT: Maximum total events (default: 200000)
//   - GRIPES_EVENT_CLEANUP_INTERVAL_HOURS: Pruning interval for serve mode (default: 24)
//   - GRIPES_EVENT_CLEANUP_BATCH_SIZE: Events deleted per statement (default: 1000)
//   - GRIPES_EVENT_CLEANUP_ENABLED: Enable pruning (default: true)
//   - GRIPES_EVENT_CLEANUP_VACUUM: Run VACUUM after pruning (default: false)
func (c *EventRetentionConfig) applyEnv() error {
	ints := []struct {
		key  string
		dest *int
	}{
		{"GRIPES_EVENT_RETENTION_DAYS", &c.RetentionDays},
		{"GRIPES_EVENT_RETENTION_ERROR_DAYS", &c.RetentionErrorDays},
		{"GRIPES_RUN_RETENTION_DAYS", &c.RunRetentionDays},
		{"GRIPES_EVENT_PER_RUN_LIMIT", &c.PerRunLimitEvents},
		{"GRIPES_EVENT_GLOBAL_LIMIT", &c.GlobalLimitEvents},
		{"GRIPES_EVENT_CLEANUP_INTERVAL_HOURS", &c.CleanupIntervalHours},
		{"GRIPES_EVENT_CLEANUP_BATCH_SIZE", &c.CleanupBatchSize},
	}
	for _, v := range ints {
		if err := parseEnvInt(v.key, v.dest); err != nil {
			return err
		}
	}
	if err := parseEnvBool("GRIPES_EVENT_CLEANUP_ENABLED", &c.CleanupEnabled); err != nil {
		return err
	}
	return parseEnvBool("GRIPES_EVENT_CLEANUP_VACUUM", &c.CleanupVacuum)
}

// EventRetentionConfigFromEnv creates an EventRetentionConfig from environment variables,
// falling back to defaults. Returns an error if any variable has an invalid value.
func EventRetentionConfigFromEnv() (EventRetentionConfig, error) {
	cfg := DefaultEventRetentionConfig()
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid event retention configuration from environment: %w", err)
	}
	return cfg, nil
}
