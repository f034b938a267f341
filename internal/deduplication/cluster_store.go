package deduplication

import (
	"fmt"
	"time"

	"github.com/steveyegge/gripes/internal/types"
)

// Match is the best candidate cluster for a query vector
type Match struct {
	ClusterID  string  `json:"cluster_id"`
	Similarity float64 `json:"similarity"`
	Compared   int     `json:"compared"` // Number of same-feature candidates scored
}

// ClusterStore holds the run's clusters and answers nearest-neighbor queries.
// It is not safe for concurrent use; Engine serializes access to it.
type ClusterStore struct {
	cfg       Config
	clusters  []*types.ComplaintCluster // Creation order
	byID      map[string]*types.ComplaintCluster
	byFeature map[types.Feature][]*types.ComplaintCluster
	nextSeq   int
	now       func() time.Time
}

// NewClusterStore creates an empty store
func NewClusterStore(cfg Config) *ClusterStore {
	s := &ClusterStore{cfg: cfg, now: time.Now}
	s.Reset()
	return s
}

// Reset drops every cluster and restarts ID assignment
func (s *ClusterStore) Reset() {
	s.clusters = nil
	s.byID = make(map[string]*types.ComplaintCluster)
	s.byFeature = make(map[types.Feature][]*types.ComplaintCluster)
	s.nextSeq = 0
}

// Len returns the number of clusters
func (s *ClusterStore) Len() int {
	return len(s.clusters)
}

// FindBestMatch returns the most similar cluster sharing the feature label.
// Clusters with other features are never candidates. A zero query vector, or a store
// with no candidates for the feature, yields no match. Ties go to the earliest cluster.
func (s *ClusterStore) FindBestMatch(vec []float32, feature types.Feature) (Match, bool) {
	if IsZero(vec) {
		return Match{}, false
	}
	candidates := s.byFeature[feature]
	best := Match{Compared: len(candidates)}
	found := false
	for _, c := range candidates {
		sim, ok := CosineSimilarity(vec, c.Embedding)
		if !ok {
			continue
		}
		if !found || sim > best.Similarity {
			best.ClusterID = c.ID
			best.Similarity = sim
			found = true
		}
	}
	return best, found
}

// CreateCluster seeds a new cluster from item with count 1
func (s *ClusterStore) CreateCluster(item *types.FeedbackItem, vec []float32) string {
	c := s.newCluster(item.Summary, item.Feature, item.FeedbackType, vec)
	c.Count = 1
	c.Sources[item.Source] = 1
	c.Examples = append(c.Examples, types.ExampleFromItem(item))
	s.insert(c)
	return c.ID
}

// RestoreCluster recreates a persisted cluster with its saved count, attributed to the restored source
func (s *ClusterStore) RestoreCluster(summary string, feature types.Feature, fbType types.FeedbackType, count int, vec []float32) string {
	c := s.newCluster(summary, feature, fbType, vec)
	c.Count = count
	c.Sources[types.SourceRestored] = count
	s.insert(c)
	return c.ID
}

// MergeInto folds item into an existing cluster: count, bounded examples, per-source count
// and centroid are all updated together.
func (s *ClusterStore) MergeInto(id string, item *types.FeedbackItem, vec []float32) error {
	c, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("cluster %s not found", id)
	}
	c.Count++
	c.Sources[item.Source]++
	c.Examples = append(c.Examples, types.ExampleFromItem(item))
	if over := len(c.Examples) - s.cfg.ExamplesCap; over > 0 {
		c.Examples = append(c.Examples[:0:0], c.Examples[over:]...)
	}
	if s.cfg.Centroid == CentroidRunningMean {
		updateMean(c.Embedding, vec, c.Count)
	}
	c.UpdatedAt = s.now()
	return nil
}

// Get returns a copy of one cluster
func (s *ClusterStore) Get(id string) (types.ComplaintCluster, bool) {
	c, ok := s.byID[id]
	if !ok {
		return types.ComplaintCluster{}, false
	}
	return c.Clone(), true
}

// Snapshot returns deep copies of all clusters in first-seen order
func (s *ClusterStore) Snapshot() []types.ComplaintCluster {
	out := make([]types.ComplaintCluster, len(s.clusters))
	for i, c := range s.clusters {
		out[i] = c.Clone()
	}
	return out
}

func (s *ClusterStore) newCluster(summary string, feature types.Feature, fbType types.FeedbackType, vec []float32) *types.ComplaintCluster {
	s.nextSeq++
	now := s.now()
	return &types.ComplaintCluster{
		ID:           fmt.Sprintf("c-%04d", s.nextSeq),
		Summary:      summary,
		Embedding:    append([]float32(nil), vec...),
		Feature:      feature,
		FeedbackType: fbType,
		Sources:      make(map[types.Source]int),
		Seq:          s.nextSeq,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *ClusterStore) insert(c *types.ComplaintCluster) {
	s.clusters = append(s.clusters, c)
	s.byID[c.ID] = c
	s.byFeature[c.Feature] = append(s.byFeature[c.Feature], c)
}
