package deduplication

import (
	"fmt"
	"strings"
	"sync"

	"github.com/steveyegge/gripes/internal/types"
)

// Engine owns the cluster store and aggregator for one analysis run.
// Every mutation holds the write lock for the whole merge-or-create decision plus its
// aggregate update, so readers never observe a cluster and a matrix that disagree.
type Engine struct {
	mu sync.RWMutex

	cfg   Config
	store *ClusterStore
	agg   *Aggregator

	dim    int                 // 0 until the first vector is accepted
	seen   map[string]struct{} // Item IDs accepted this run
	failed error               // Latched dimension mismatch
	stats  Stats
}

// Compile-time check that Engine implements Deduplicator
var _ Deduplicator = (*Engine)(nil)

// NewEngine creates an engine with the given configuration
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		cfg:   cfg,
		store: NewClusterStore(cfg),
		agg:   NewAggregator(),
		seen:  make(map[string]struct{}),
	}, nil
}

// Config returns the engine's configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Submit folds one classified item into the cluster set.
func (e *Engine) Submit(item *types.FeedbackItem, vec []float32) (*Decision, error) {
	if item == nil {
		return nil, &types.ValidationError{Reason: types.ReasonMalformed, Detail: "item is nil"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.admit(item, vec); err != nil {
		e.stats.Rejected++
		return nil, err
	}

	decision := &Decision{}
	match, found := e.store.FindBestMatch(vec, item.Feature)
	decision.Compared = match.Compared
	if found {
		decision.Similarity = match.Similarity
	}

	// Merged items count under the cluster's canonical labels so the matrix stays
	// recomputable from the clusters alone.
	feature, fbType := item.Feature, item.FeedbackType
	if found && match.Similarity >= e.cfg.SimilarityThreshold {
		if err := e.store.MergeInto(match.ClusterID, item, vec); err != nil {
			return nil, &types.StateConsistencyError{Detail: err.Error()}
		}
		c := e.store.byID[match.ClusterID]
		feature, fbType = c.Feature, c.FeedbackType
		decision.ClusterID = match.ClusterID
		decision.Merged = true
		e.stats.Merged++
	} else {
		decision.ClusterID = e.store.CreateCluster(item, vec)
		e.stats.Created++
	}
	e.agg.ApplyDelta(feature, fbType, item.Source, 1)

	e.stats.Accepted++
	if item.ID != "" {
		e.seen[item.ID] = struct{}{}
	}
	return decision, nil
}

// admit runs every check that must pass before state changes. Caller holds the write lock.
func (e *Engine) admit(item *types.FeedbackItem, vec []float32) error {
	if e.failed != nil {
		return e.failed
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if len(vec) == 0 {
		return &types.ValidationError{ItemID: item.ID, Reason: types.ReasonEmptyVector}
	}
	if item.ID != "" {
		if _, dup := e.seen[item.ID]; dup {
			return &types.ValidationError{ItemID: item.ID, Reason: types.ReasonDuplicateSubmission}
		}
	}
	return e.checkDimension(vec)
}

func (e *Engine) checkDimension(vec []float32) error {
	if e.dim == 0 {
		e.dim = len(vec)
		e.stats.Dimension = e.dim
		return nil
	}
	if len(vec) != e.dim {
		e.failed = &types.DimensionMismatchError{Expected: e.dim, Got: len(vec)}
		e.stats.Failed = true
		return e.failed
	}
	return nil
}

// Restore recreates a persisted cluster with its saved count. The vector must be a fresh
// embedding of summary from the provider used for this run.
func (e *Engine) Restore(summary string, feature types.Feature, fbType types.FeedbackType, count int, vec []float32) (string, error) {
	if strings.TrimSpace(summary) == "" {
		return "", &types.ValidationError{Reason: types.ReasonEmptySummary}
	}
	if count < 1 {
		return "", &types.ValidationError{Reason: types.ReasonMalformed,
			Detail: fmt.Sprintf("count must be at least 1 (got %d)", count)}
	}
	if len(vec) == 0 {
		return "", &types.ValidationError{Reason: types.ReasonEmptyVector}
	}
	if feature == "" {
		feature = types.FeatureOther
	}
	if fbType == "" {
		fbType = types.FeedbackUnknown
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failed != nil {
		return "", e.failed
	}
	if err := e.checkDimension(vec); err != nil {
		return "", err
	}
	id := e.store.RestoreCluster(summary, feature, fbType, count, vec)
	e.agg.ApplyDelta(feature, fbType, types.SourceRestored, count)
	e.stats.Restored++
	return id, nil
}

// FindBestMatch reports the closest same-feature cluster without changing anything
func (e *Engine) FindBestMatch(vec []float32, feature types.Feature) (Match, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.FindBestMatch(vec, feature)
}

// FeatureMatch is the best candidate for a vector within one feature
type FeatureMatch struct {
	Feature types.Feature `json:"feature"`
	Match
	// WouldMerge is true when Similarity reaches the merge threshold
	WouldMerge bool `json:"would_merge"`
}

// FindBestMatches runs FindBestMatch for every feature that has clusters, in the order
// features were first seen. Useful for asking where a text would land before classifying it.
func (e *Engine) FindBestMatches(vec []float32) []FeatureMatch {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []FeatureMatch
	seen := make(map[types.Feature]bool)
	for _, c := range e.store.clusters {
		if seen[c.Feature] {
			continue
		}
		seen[c.Feature] = true
		m, ok := e.store.FindBestMatch(vec, c.Feature)
		if !ok {
			continue
		}
		out = append(out, FeatureMatch{
			Feature:    c.Feature,
			Match:      m,
			WouldMerge: m.Similarity >= e.cfg.SimilarityThreshold,
		})
	}
	return out
}

// SnapshotClusters returns deep copies of all clusters in first-seen order
func (e *Engine) SnapshotClusters() []types.ComplaintCluster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Snapshot()
}

// SnapshotMatrix returns a copy of the aggregate matrix
func (e *Engine) SnapshotMatrix() types.AggregateMatrix {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agg.Snapshot()
}

// Snapshot returns clusters and matrix taken under a single read lock
func (e *Engine) Snapshot() ([]types.ComplaintCluster, types.AggregateMatrix) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Snapshot(), e.agg.Snapshot()
}

// Cluster returns a copy of one cluster by ID
func (e *Engine) Cluster(id string) (types.ComplaintCluster, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Get(id)
}

// Stats returns activity counters since the last Reset
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.stats
	s.Clusters = e.store.Len()
	return s
}

// Reset clears all state, including a latched dimension mismatch
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Reset()
	e.agg.Reset()
	e.dim = 0
	e.seen = make(map[string]struct{})
	e.failed = nil
	e.stats = Stats{}
}

// CheckConsistency recomputes the matrix from the clusters and compares it with the
// incrementally maintained one. It also checks count == sum(sources) per cluster.
func (e *Engine) CheckConsistency() error {
	clusters, matrix := e.Snapshot()
	for i := range clusters {
		if err := clusters[i].Validate(); err != nil {
			return &types.StateConsistencyError{Detail: err.Error()}
		}
	}
	if diff := RecomputeMatrix(clusters).Diff(matrix); diff != "" {
		return &types.StateConsistencyError{Detail: "aggregate matrix out of sync: " + diff}
	}
	return nil
}
