package deduplication

import (
	"github.com/steveyegge/gripes/internal/types"
)

// Aggregator maintains the feature x feedback-type matrix and source distribution
// as an incrementally updated view over the cluster store.
// Like ClusterStore it relies on Engine for serialization.
type Aggregator struct {
	matrix types.AggregateMatrix
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{matrix: types.NewAggregateMatrix()}
}

// ApplyDelta adds delta to the (feature, feedbackType) cell and to the source bucket
func (a *Aggregator) ApplyDelta(feature types.Feature, feedbackType types.FeedbackType, source types.Source, delta int) {
	a.matrix.Add(feature, feedbackType, source, delta)
}

// Snapshot returns a copy that callers may keep or modify freely
func (a *Aggregator) Snapshot() types.AggregateMatrix {
	return a.matrix.Clone()
}

// Reset clears all counts
func (a *Aggregator) Reset() {
	a.matrix = types.NewAggregateMatrix()
}

// RecomputeMatrix rebuilds the matrix from scratch by summing every cluster's contribution
func RecomputeMatrix(clusters []types.ComplaintCluster) types.AggregateMatrix {
	m := types.NewAggregateMatrix()
	for i := range clusters {
		c := &clusters[i]
		for src, n := range c.Sources {
			m.Add(c.Feature, c.FeedbackType, src, n)
		}
	}
	return m
}
