package deduplication

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gripes/internal/types"
)

func newItem(id, summary string, feature types.Feature, source types.Source) *types.FeedbackItem {
	return &types.FeedbackItem{
		ID:           id,
		RawText:      summary,
		Summary:      summary,
		Feature:      feature,
		FeedbackType: types.FeedbackWorseThanCompetitor,
		Source:       source,
	}
}

func newTestEngine(t *testing.T, mutate func(c *Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 2
	_, err := NewEngine(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestIdempotentReMerge(t *testing.T) {
	e := newTestEngine(t, nil)
	vec := []float32{0.2, 0.4, 0.9}

	d1, err := e.Submit(newItem("a", "battery drains overnight", types.FeatureBattery, types.SourceReddit), vec)
	require.NoError(t, err)
	assert.False(t, d1.Merged)

	d2, err := e.Submit(newItem("b", "battery drains overnight", types.FeatureBattery, types.SourceReddit), vec)
	require.NoError(t, err)
	assert.True(t, d2.Merged)
	assert.Equal(t, d1.ClusterID, d2.ClusterID)
	assert.InDelta(t, 1.0, d2.Similarity, 1e-9)
	require.NoError(t, d2.Validate())

	clusters := e.SnapshotClusters()
	require.Len(t, clusters, 1)
	assert.Equal(t, 2, clusters[0].Count)
	assert.Equal(t, 2, clusters[0].Sources[types.SourceReddit])
}

func TestFeatureIsolation(t *testing.T) {
	e := newTestEngine(t, nil)
	vec := []float32{1, 1, 1}

	d1, err := e.Submit(newItem("a", "too expensive for what it is", types.FeaturePrice, types.SourceReddit), vec)
	require.NoError(t, err)
	d2, err := e.Submit(newItem("b", "too expensive for what it is", types.FeatureBuildQuality, types.SourceReddit), vec)
	require.NoError(t, err)

	assert.False(t, d2.Merged)
	assert.Equal(t, 0, d2.Compared, "clusters of another feature must not be scored")
	assert.NotEqual(t, d1.ClusterID, d2.ClusterID)
	assert.Len(t, e.SnapshotClusters(), 2)
}

func TestThresholdBoundary(t *testing.T) {
	seed := []float32{1, 0, 0}
	probe := []float32{0.8, 0.6, 0}
	sim, ok := CosineSimilarity(seed, probe)
	require.True(t, ok)

	tests := []struct {
		name      string
		threshold float64
		wantMerge bool
	}{
		{"exactly at threshold merges", sim, true},
		{"just above similarity creates", sim + 0.0001, false},
		{"below similarity merges", sim - 0.0001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, func(c *Config) { c.SimilarityThreshold = tt.threshold })
			_, err := e.Submit(newItem("seed", "screen is too dim", types.FeatureDisplay, types.SourceReddit), seed)
			require.NoError(t, err)

			d, err := e.Submit(newItem("probe", "display is dark", types.FeatureDisplay, types.SourceYouTube), probe)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMerge, d.Merged)
			assert.InDelta(t, sim, d.Similarity, 1e-12)
		})
	}
}

func TestOrderSensitivity(t *testing.T) {
	a := newItem("A", "screen is too dim", types.FeatureDisplay, types.SourceReddit)
	b := newItem("B", "the display is way too dark", types.FeatureDisplay, types.SourceYouTube)
	c := newItem("C", "battery dies fast", types.FeatureBattery, types.SourceTwitter)
	vecs := map[string][]float32{
		"A": {0.9, 0.1, 0.0},
		"B": {0.85, 0.15, 0.02},
		"C": {0.0, 0.1, 0.95},
	}
	run := func(order ...*types.FeedbackItem) []types.ComplaintCluster {
		e := newTestEngine(t, nil)
		for _, it := range order {
			_, err := e.Submit(it, vecs[it.ID])
			require.NoError(t, err)
		}
		require.NoError(t, e.CheckConsistency())
		return e.SnapshotClusters()
	}

	abc := run(a, b, c)
	require.Len(t, abc, 2)
	assert.Equal(t, "c-0001", abc[0].ID)
	assert.Equal(t, types.FeatureDisplay, abc[0].Feature)
	assert.Equal(t, 2, abc[0].Count)
	assert.Equal(t, "screen is too dim", abc[0].Summary)
	assert.Equal(t, types.FeatureBattery, abc[1].Feature)
	assert.Equal(t, 1, abc[1].Count)

	cab := run(c, a, b)
	require.Len(t, cab, 2)
	assert.Equal(t, "c-0001", cab[0].ID)
	assert.Equal(t, types.FeatureBattery, cab[0].Feature)
	assert.Equal(t, 1, cab[0].Count)
	assert.Equal(t, "c-0002", cab[1].ID)
	assert.Equal(t, types.FeatureDisplay, cab[1].Feature)
	assert.Equal(t, 2, cab[1].Count)
}

func TestBoundedExamples(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.ExamplesCap = 5 })
	vec := []float32{0.3, 0.3, 0.3}
	for i := 1; i <= 10; i++ {
		_, err := e.Submit(newItem(fmt.Sprintf("item-%d", i), "camera is blurry at night", types.FeatureCamera, types.SourceReddit), vec)
		require.NoError(t, err)
	}

	clusters := e.SnapshotClusters()
	require.Len(t, clusters, 1)
	assert.Equal(t, 10, clusters[0].Count)
	require.Len(t, clusters[0].Examples, 5)
	for i, ex := range clusters[0].Examples {
		assert.Equal(t, fmt.Sprintf("item-%d", i+6), ex.ItemID)
	}
}

func TestReset(t *testing.T) {
	e := newTestEngine(t, nil)
	for i := 0; i < 3; i++ {
		_, err := e.Submit(newItem(fmt.Sprintf("x%d", i), "speaker crackles", types.FeatureAudio, types.SourceRSS), []float32{float32(i), 1})
		require.NoError(t, err)
	}
	require.NotEmpty(t, e.SnapshotClusters())

	e.Reset()
	assert.Empty(t, e.SnapshotClusters())
	assert.Equal(t, 0, e.SnapshotMatrix().Total())
	assert.Equal(t, Stats{}, e.Stats())

	// IDs, dimension and seen items all start over
	d, err := e.Submit(newItem("x0", "speaker crackles", types.FeatureAudio, types.SourceRSS), []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "c-0001", d.ClusterID)
	clusters := e.SnapshotClusters()
	require.Len(t, clusters, 1)
	assert.Equal(t, 1, clusters[0].Count)
}

func TestZeroVectorNeverMatches(t *testing.T) {
	e := newTestEngine(t, nil)
	zero := []float32{0, 0, 0}

	_, err := e.Submit(newItem("real", "lags when gaming", types.FeaturePerformance, types.SourceReddit), []float32{1, 0, 0})
	require.NoError(t, err)

	d1, err := e.Submit(newItem("z1", "lags when gaming", types.FeaturePerformance, types.SourceReddit), zero)
	require.NoError(t, err)
	assert.False(t, d1.Merged)

	d2, err := e.Submit(newItem("z2", "lags when gaming", types.FeaturePerformance, types.SourceReddit), zero)
	require.NoError(t, err)
	assert.False(t, d2.Merged)
	assert.NotEqual(t, d1.ClusterID, d2.ClusterID)

	// A later real vector is never matched against the zero centroids either
	d3, err := e.Submit(newItem("real2", "lags when gaming", types.FeaturePerformance, types.SourceReddit), []float32{1, 0, 0})
	require.NoError(t, err)
	assert.True(t, d3.Merged)
	assert.Equal(t, "c-0001", d3.ClusterID)
	assert.Equal(t, 3, d3.Compared)

	assert.Len(t, e.SnapshotClusters(), 3)
}

func TestValidationErrors(t *testing.T) {
	e := newTestEngine(t, nil)
	vec := []float32{1, 2}

	tests := []struct {
		name       string
		item       *types.FeedbackItem
		vec        []float32
		wantReason string
	}{
		{"empty summary", newItem("e1", "", types.FeatureCamera, types.SourceReddit), vec, types.ReasonEmptySummary},
		{"whitespace summary", newItem("e2", "  \t ", types.FeatureCamera, types.SourceReddit), vec, types.ReasonEmptySummary},
		{"empty vector", newItem("e3", "no night mode", types.FeatureCamera, types.SourceReddit), nil, types.ReasonEmptyVector},
		{"nil item", nil, vec, types.ReasonMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Submit(tt.item, tt.vec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrValidation))
			var verr *types.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantReason, verr.Reason)
		})
	}

	assert.Empty(t, e.SnapshotClusters(), "rejected items must not create clusters")
	assert.Equal(t, 0, e.Stats().Dimension, "rejected items must not establish the dimension")
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	e := newTestEngine(t, nil)
	item := newItem("post-1", "no headphone jack", types.FeatureAudio, types.SourceReddit)

	_, err := e.Submit(item, []float32{1, 0})
	require.NoError(t, err)

	_, err = e.Submit(item, []float32{1, 0})
	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, types.ReasonDuplicateSubmission, verr.Reason)

	clusters := e.SnapshotClusters()
	require.Len(t, clusters, 1)
	assert.Equal(t, 1, clusters[0].Count)
	assert.Equal(t, 1, e.Stats().Rejected)
}

func TestDimensionMismatchIsFatalUntilReset(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.Submit(newItem("a", "heavy phone", types.FeatureDesign, types.SourceReddit), []float32{1, 0, 0})
	require.NoError(t, err)

	_, err = e.Submit(newItem("b", "heavy phone", types.FeatureDesign, types.SourceReddit), []float32{1, 0})
	require.Error(t, err)
	var dim *types.DimensionMismatchError
	require.True(t, errors.As(err, &dim))
	assert.Equal(t, 3, dim.Expected)
	assert.Equal(t, 2, dim.Got)

	// Even a well-formed item is refused now
	_, err = e.Submit(newItem("c", "heavy phone", types.FeatureDesign, types.SourceReddit), []float32{1, 0, 0})
	assert.True(t, errors.Is(err, types.ErrDimensionMismatch))
	_, err = e.Restore("heavy phone", types.FeatureDesign, types.FeedbackNeutral, 2, []float32{1, 0, 0})
	assert.True(t, errors.Is(err, types.ErrDimensionMismatch))
	assert.True(t, e.Stats().Failed)

	// State from before the failure is still exportable
	assert.Len(t, e.SnapshotClusters(), 1)

	e.Reset()
	_, err = e.Submit(newItem("d", "heavy phone", types.FeatureDesign, types.SourceReddit), []float32{1, 0})
	assert.NoError(t, err)
}

func TestCentroidPolicies(t *testing.T) {
	first := []float32{1, 0}
	second := []float32{0.6, 0.8}

	tests := []struct {
		policy CentroidPolicy
		want   []float32
	}{
		{CentroidRunningMean, []float32{0.8, 0.4}},
		{CentroidFirstSeen, []float32{1, 0}},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			e := newTestEngine(t, func(c *Config) {
				c.SimilarityThreshold = 0.5
				c.Centroid = tt.policy
			})
			_, err := e.Submit(newItem("1", "great zoom", types.FeatureCamera, types.SourceReddit), first)
			require.NoError(t, err)
			d, err := e.Submit(newItem("2", "zoom is great", types.FeatureCamera, types.SourceReddit), second)
			require.NoError(t, err)
			require.True(t, d.Merged)

			c, ok := e.Cluster(d.ClusterID)
			require.True(t, ok)
			require.Len(t, c.Embedding, 2)
			assert.InDelta(t, tt.want[0], c.Embedding[0], 1e-6)
			assert.InDelta(t, tt.want[1], c.Embedding[1], 1e-6)
		})
	}
}

func TestRestore(t *testing.T) {
	e := newTestEngine(t, nil)

	id, err := e.Restore("battery drains fast", types.FeatureBattery, types.FeedbackWorseThanCompetitor, 7, []float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, "c-0001", id)

	d, err := e.Submit(newItem("new", "battery drains fast", types.FeatureBattery, types.SourceYouTube), []float32{1, 0})
	require.NoError(t, err)
	assert.True(t, d.Merged)
	assert.Equal(t, id, d.ClusterID)

	c, _ := e.Cluster(id)
	assert.Equal(t, 8, c.Count)
	assert.Equal(t, 7, c.Sources[types.SourceRestored])
	assert.Equal(t, 1, c.Sources[types.SourceYouTube])

	m := e.SnapshotMatrix()
	assert.Equal(t, 8, m.Cell(types.FeatureBattery, types.FeedbackWorseThanCompetitor))
	assert.Equal(t, 7, m.Sources[types.SourceRestored])
	require.NoError(t, e.CheckConsistency())

	s := e.Stats()
	assert.Equal(t, 1, s.Restored)
	require.NoError(t, s.Validate())

	_, err = e.Restore("", types.FeatureBattery, types.FeedbackNeutral, 1, []float32{1, 0})
	assert.True(t, errors.Is(err, types.ErrValidation))
	_, err = e.Restore("ok", types.FeatureBattery, types.FeedbackNeutral, 0, []float32{1, 0})
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestMatrixConsistencyRandomSequences(t *testing.T) {
	features := []types.Feature{types.FeatureCamera, types.FeatureBattery, types.FeatureDisplay, types.Feature("haptics")}
	fbTypes := types.KnownFeedbackTypes
	sources := []types.Source{types.SourceReddit, types.SourceYouTube, types.SourceTwitter}
	bases := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 0}}

	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			e := newTestEngine(t, func(c *Config) { c.SimilarityThreshold = 0.9 })

			for i := 0; i < 200; i++ {
				base := bases[rng.Intn(len(bases))]
				vec := make([]float32, len(base))
				for j := range base {
					vec[j] = base[j] + float32(rng.Float64()*0.3)
				}
				item := newItem(fmt.Sprintf("s%d-%d", seed, i), fmt.Sprintf("summary %d", i),
					features[rng.Intn(len(features))], sources[rng.Intn(len(sources))])
				item.FeedbackType = fbTypes[rng.Intn(len(fbTypes))]

				_, err := e.Submit(item, vec)
				require.NoError(t, err)
				require.NoError(t, e.CheckConsistency(), "after item %d", i)
			}

			clusters, matrix := e.Snapshot()
			assert.True(t, RecomputeMatrix(clusters).Equal(matrix))
			assert.Equal(t, 200, matrix.Total())
			stats := e.Stats()
			require.NoError(t, stats.Validate())
			assert.Equal(t, len(clusters), stats.Clusters)
		})
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.Submit(newItem("a", "price too high", types.FeaturePrice, types.SourceReddit), []float32{1, 1})
	require.NoError(t, err)

	clusters := e.SnapshotClusters()
	clusters[0].Count = 99
	clusters[0].Sources[types.SourceReddit] = 99
	clusters[0].Embedding[0] = 42

	matrix := e.SnapshotMatrix()
	matrix.Add(types.FeaturePrice, types.FeedbackNeutral, types.SourceReddit, 10)

	require.NoError(t, e.CheckConsistency())
	fresh := e.SnapshotClusters()
	assert.Equal(t, 1, fresh[0].Count)
	assert.Equal(t, float32(1), fresh[0].Embedding[0])
	assert.Equal(t, 1, e.SnapshotMatrix().Total())
}

func TestConcurrentSubmitAndSnapshot(t *testing.T) {
	e := newTestEngine(t, nil)
	features := []types.Feature{types.FeatureCamera, types.FeatureBattery}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				item := newItem(fmt.Sprintf("w%d-%d", w, i), "same complaint", features[i%2], types.SourceReddit)
				_, err := e.Submit(item, []float32{1, float32(i % 3)})
				assert.NoError(t, err)
			}
		}(w)
	}
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, e.CheckConsistency())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, e.SnapshotMatrix().Total())
	require.NoError(t, e.CheckConsistency())
}

func TestDecisionValidate(t *testing.T) {
	tests := []struct {
		name     string
		decision Decision
		errorMsg string
	}{
		{"created", Decision{ClusterID: "c-0001"}, ""},
		{"merged", Decision{ClusterID: "c-0001", Merged: true, Similarity: 0.9, Compared: 1}, ""},
		{"missing id", Decision{}, "cluster_id is required"},
		{"similarity too high", Decision{ClusterID: "c", Similarity: 1.5}, "similarity must be between"},
		{"merged without candidates", Decision{ClusterID: "c", Merged: true}, "compared at least one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decision.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestFindBestMatches(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.Submit(newItem("a", "battery drains fast", types.FeatureBattery, types.SourceReddit), []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = e.Submit(newItem("b", "camera is blurry", types.FeatureCamera, types.SourceReddit), []float32{0, 1, 0})
	require.NoError(t, err)
	_, err = e.Submit(newItem("c", "battery barely lasts", types.FeatureBattery, types.SourceReddit), []float32{0, 0, 1})
	require.NoError(t, err)

	matches := e.FindBestMatches([]float32{1, 0, 0})
	require.Len(t, matches, 2)

	assert.Equal(t, types.FeatureBattery, matches[0].Feature)
	assert.Equal(t, "c-0001", matches[0].ClusterID)
	assert.Equal(t, 2, matches[0].Compared)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
	assert.True(t, matches[0].WouldMerge)

	assert.Equal(t, types.FeatureCamera, matches[1].Feature)
	assert.False(t, matches[1].WouldMerge)

	assert.Empty(t, e.FindBestMatches([]float32{0, 0, 0}))
	assert.Equal(t, 3, e.Stats().Clusters, "lookups change nothing")
}
