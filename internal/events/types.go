package events

import (
	"context"
	"time"
)

// EventType represents the type of event that occurred during a run.
type EventType string

const (
	// EventTypeRunStarted indicates a pipeline run started
	EventTypeRunStarted EventType = "run_started"
	// EventTypeRunCompleted indicates a pipeline run finished, fully or partially
	EventTypeRunCompleted EventType = "run_completed"

	// Source events
	// EventTypeSourceFetched indicates a source connector returned items
	EventTypeSourceFetched EventType = "source_fetched"
	// EventTypeSourceFailed indicates a source connector failed; the run continues without it
	EventTypeSourceFailed EventType = "source_failed"

	// Item events
	// EventTypeItemSkipped indicates an item was dropped before or at submission
	EventTypeItemSkipped EventType = "item_skipped"
	// EventTypeClusterCreated indicates an item seeded a new cluster
	EventTypeClusterCreated EventType = "cluster_created"
	// EventTypeClusterMerged indicates an item was merged into an existing cluster
	EventTypeClusterMerged EventType = "cluster_merged"

	// Persistence events
	// EventTypeStateRestored indicates clusters were reloaded from a store
	EventTypeStateRestored EventType = "state_restored"
	// EventTypeStateSaved indicates clusters were written to a store
	EventTypeStateSaved EventType = "state_saved"
	// EventTypeEventCleanupCompleted indicates an event retention cleanup finished
	EventTypeEventCleanupCompleted EventType = "event_cleanup_completed"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates skipped items and failed sources
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates errors that ended a run early
	SeverityError EventSeverity = "error"
)

// RunEvent is one thing that happened during a run.
// Events drive the CLI progress display and are kept in the run history.
type RunEvent struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// RunID is the run that produced this event
	RunID string `json:"run_id"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data"`
}

// SourceFetchedData contains structured data for source fetch events.
type SourceFetchedData struct {
	Source     string `json:"source"`
	Items      int    `json:"items"`
	DurationMs int64  `json:"duration_ms"`
}

// SourceFailedData contains structured data for source failure events.
type SourceFailedData struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// ItemSkippedData contains structured data for skipped items.
type ItemSkippedData struct {
	ItemID string `json:"item_id"`
	Source string `json:"source"`
	// Reason is the skip-count key, e.g. "too_short" or "embedding_failed"
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// DecisionData contains structured data for cluster create and merge events.
type DecisionData struct {
	ItemID       string  `json:"item_id"`
	ClusterID    string  `json:"cluster_id"`
	Summary      string  `json:"summary"`
	Feature      string  `json:"feature"`
	FeedbackType string  `json:"feedback_type"`
	Source       string  `json:"source"`
	Merged       bool    `json:"merged"`
	Similarity   float64 `json:"similarity"`
	// Compared is how many same-feature clusters were scored
	Compared int `json:"compared"`
}

// RunCompletedData contains structured data for run completion events.
type RunCompletedData struct {
	Product    string         `json:"product"`
	Fetched    int            `json:"fetched"`
	Submitted  int            `json:"submitted"`
	Created    int            `json:"created"`
	Merged     int            `json:"merged"`
	Skipped    map[string]int `json:"skipped,omitempty"`
	Partial    bool           `json:"partial"`
	DurationMs int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
}

// StateData contains structured data for restore and save events.
type StateData struct {
	Store    string `json:"store"`
	Clusters int    `json:"clusters"`
	Items    int    `json:"items"`
	Skipped  int    `json:"skipped,omitempty"`
}

// EventCleanupCompletedData contains structured data for event cleanup completion events.
type EventCleanupCompletedData struct {
	// EventsDeleted is the total number of events deleted
	EventsDeleted int `json:"events_deleted"`
	// TimeBasedDeleted, PerRunDeleted and GlobalLimitDeleted break EventsDeleted down by pass
	TimeBasedDeleted   int `json:"time_based_deleted"`
	PerRunDeleted      int `json:"per_run_deleted"`
	GlobalLimitDeleted int `json:"global_limit_deleted"`
	// RunsDeleted is the number of run history rows deleted
	RunsDeleted     int  `json:"runs_deleted"`
	EventsRemaining int  `json:"events_remaining"`
	VacuumRan       bool `json:"vacuum_ran"`
	// ProcessingTimeMs is the time taken for cleanup in milliseconds
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	Success          bool   `json:"success"`
	Error            string `json:"error,omitempty"`
}

// EventStore persists run events
type EventStore interface {
	StoreEvent(ctx context.Context, event *RunEvent) error
	GetEvents(ctx context.Context, filter EventFilter) ([]*RunEvent, error)
}

// EventFilter selects events; zero fields match everything
type EventFilter struct {
	RunID    string
	Type     EventType
	Severity EventSeverity
	// AfterTime selects events strictly after this time
	AfterTime time.Time
	// Limit caps the result (0 = unlimited)
	Limit int
}

// Matches reports whether e passes the filter
func (f EventFilter) Matches(e *RunEvent) bool {
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if !f.AfterTime.IsZero() && !e.Timestamp.After(f.AfterTime) {
		return false
	}
	return true
}
