package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks. Each structured error below matches exactly one.
var (
	ErrValidation        = errors.New("validation error")
	ErrEmbedding         = errors.New("embedding error")
	ErrClassification    = errors.New("classification error")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrStateConsistency  = errors.New("state consistency error")
)

// Validation reasons, used as skip-count keys in run reports
const (
	ReasonEmptySummary        = "empty_summary"
	ReasonEmptyVector         = "empty_vector"
	ReasonMalformed           = "malformed"
	ReasonDuplicateSubmission = "duplicate_submission"
	ReasonTooShort            = "too_short"
	ReasonNoContent           = "no_content"
	ReasonCanceled            = "canceled" // fetched but not submitted before the run stopped
)

// ValidationError rejects a single malformed item. The run continues.
type ValidationError struct {
	ItemID string
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid item %q: %s", e.ItemID, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DimensionMismatchError means vectors from two embedding spaces met in one run.
// It is fatal to the run until Reset.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: run established %d, got %d", e.Expected, e.Got)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// StateConsistencyError reports an internal invariant violation
type StateConsistencyError struct {
	Detail string
}

func (e *StateConsistencyError) Error() string {
	return "state consistency violated: " + e.Detail
}

func (e *StateConsistencyError) Is(target error) bool { return target == ErrStateConsistency }

// EmbeddingError wraps a provider failure for one text
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding via %s failed: %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() []error { return []error{ErrEmbedding, e.Err} }

// ClassificationError wraps a classifier failure, including unparseable model output
type ClassificationError struct {
	Provider string
	Err      error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification via %s failed: %v", e.Provider, e.Err)
}

func (e *ClassificationError) Unwrap() []error { return []error{ErrClassification, e.Err} }

// SkipReason maps an error to the key it is counted under when a pipeline skips an item.
func SkipReason(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Reason
	case errors.Is(err, ErrEmbedding):
		return "embedding_failed"
	case errors.Is(err, ErrClassification):
		return "classification_failed"
	default:
		return "other"
	}
}
