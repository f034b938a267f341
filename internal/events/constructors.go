package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewSimpleEvent creates a RunEvent with no structured data
func NewSimpleEvent(eventType EventType, runID string, severity EventSeverity, message string) *RunEvent {
	return &RunEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		Severity:  severity,
		Message:   message,
		Data:      make(map[string]interface{}),
	}
}

// NewEvent creates a RunEvent carrying a typed data struct
func NewEvent(eventType EventType, runID string, severity EventSeverity, message string, data interface{}) (*RunEvent, error) {
	event := NewSimpleEvent(eventType, runID, severity, message)
	if data != nil {
		if err := event.SetData(data); err != nil {
			return nil, err
		}
	}
	return event, nil
}

// NewSourceFetchedEvent reports a successful fetch
func NewSourceFetchedEvent(runID string, data SourceFetchedData) (*RunEvent, error) {
	msg := fmt.Sprintf("fetched %d items from %s", data.Items, data.Source)
	return NewEvent(EventTypeSourceFetched, runID, SeverityInfo, msg, data)
}

// NewSourceFailedEvent reports a failed source
func NewSourceFailedEvent(runID string, data SourceFailedData) (*RunEvent, error) {
	msg := fmt.Sprintf("source %s failed: %s", data.Source, data.Error)
	return NewEvent(EventTypeSourceFailed, runID, SeverityWarning, msg, data)
}

// NewItemSkippedEvent reports a dropped item
func NewItemSkippedEvent(runID string, data ItemSkippedData) (*RunEvent, error) {
	msg := fmt.Sprintf("skipped item %s: %s", data.ItemID, data.Reason)
	return NewEvent(EventTypeItemSkipped, runID, SeverityWarning, msg, data)
}

// NewDecisionEvent reports a create or merge
func NewDecisionEvent(runID string, data DecisionData) (*RunEvent, error) {
	if data.Merged {
		msg := fmt.Sprintf("merged into %s (similarity %.3f)", data.ClusterID, data.Similarity)
		return NewEvent(EventTypeClusterMerged, runID, SeverityInfo, msg, data)
	}
	msg := fmt.Sprintf("created %s: %s", data.ClusterID, data.Summary)
	return NewEvent(EventTypeClusterCreated, runID, SeverityInfo, msg, data)
}

// NewRunCompletedEvent reports the end of a run
func NewRunCompletedEvent(runID string, data RunCompletedData) (*RunEvent, error) {
	severity := SeverityInfo
	msg := fmt.Sprintf("run finished: %d submitted, %d clusters created, %d merged",
		data.Submitted, data.Created, data.Merged)
	if data.Error != "" {
		severity = SeverityError
		msg = "run aborted: " + data.Error
	} else if data.Partial {
		severity = SeverityWarning
		msg = "run canceled: " + msg
	}
	return NewEvent(EventTypeRunCompleted, runID, severity, msg, data)
}
