package deduplication

import (
	"fmt"

	"github.com/steveyegge/gripes/internal/types"
)

// Deduplicator folds classified feedback items into complaint clusters.
//
// Example usage:
//
//	engine, err := NewEngine(DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
//	decision, err := engine.Submit(item, vector)
//	switch {
//	case errors.Is(err, types.ErrValidation):
//	    // skip the item, keep going
//	case errors.Is(err, types.ErrDimensionMismatch):
//	    // abort the run, Reset before reuse
//	case err == nil && decision.Merged:
//	    log.Info("merged", "cluster", decision.ClusterID, "similarity", decision.Similarity)
//	}
//
//	clusters := engine.SnapshotClusters()
//	matrix := engine.SnapshotMatrix()
type Deduplicator interface {
	// Submit decides merge vs. create for one item and updates the aggregates in the
	// same atomic step. The vector must be the embedding of item.Summary; the
	// deduplicator never embeds anything itself.
	//
	// Returns:
	// - Decision describing which cluster the item landed in
	// - ValidationError for empty summaries, empty vectors and repeated item IDs
	// - DimensionMismatchError when the vector length differs from the run's dimension
	Submit(item *types.FeedbackItem, vec []float32) (*Decision, error)

	// SnapshotClusters returns deep copies of all clusters in first-seen order
	SnapshotClusters() []types.ComplaintCluster

	// SnapshotMatrix returns a copy of the aggregate matrix
	SnapshotMatrix() types.AggregateMatrix

	// Reset clears all clusters, aggregates and the failed state
	Reset()
}

// Decision is the outcome of submitting a single item
type Decision struct {
	// ClusterID is the cluster the item now belongs to
	ClusterID string `json:"cluster_id"`

	// Merged is true when the item joined an existing cluster
	Merged bool `json:"merged"`

	// Similarity is the best same-feature cosine score found, whether or not it merged.
	// Zero when there were no candidates.
	Similarity float64 `json:"similarity"`

	// Compared is the number of same-feature clusters scored
	Compared int `json:"compared"`
}

// Validate checks if the decision has valid values
func (d *Decision) Validate() error {
	if d.ClusterID == "" {
		return fmt.Errorf("cluster_id is required")
	}
	if d.Similarity < -1.0 || d.Similarity > 1.0+1e-9 {
		return fmt.Errorf("similarity must be between -1.0 and 1.0 (got %.4f)", d.Similarity)
	}
	if d.Compared < 0 {
		return fmt.Errorf("compared cannot be negative (got %d)", d.Compared)
	}
	if d.Merged && d.Compared == 0 {
		return fmt.Errorf("merged decision must have compared at least one cluster")
	}
	return nil
}

// Stats tracks engine activity since the last Reset
type Stats struct {
	// Accepted is the number of items folded into clusters
	Accepted int `json:"accepted"`

	// Created is the number of clusters seeded by submitted items
	Created int `json:"created"`

	// Merged is the number of items that joined an existing cluster
	Merged int `json:"merged"`

	// Rejected is the number of submissions refused with an error
	Rejected int `json:"rejected"`

	// Restored is the number of clusters recreated from persisted rows
	Restored int `json:"restored"`

	// Clusters is the current number of clusters
	Clusters int `json:"clusters"`

	// Dimension is the run's embedding dimension, 0 until the first vector arrives
	Dimension int `json:"dimension"`

	// Failed is true after a dimension mismatch until Reset
	Failed bool `json:"failed"`
}

// Validate checks that the stats are internally consistent
func (s *Stats) Validate() error {
	if s.Accepted != s.Created+s.Merged {
		return fmt.Errorf("accepted (%d) != created (%d) + merged (%d)", s.Accepted, s.Created, s.Merged)
	}
	if s.Clusters != s.Created+s.Restored {
		return fmt.Errorf("clusters (%d) != created (%d) + restored (%d)", s.Clusters, s.Created, s.Restored)
	}
	if s.Accepted < 0 || s.Rejected < 0 {
		return fmt.Errorf("counts cannot be negative")
	}
	return nil
}
