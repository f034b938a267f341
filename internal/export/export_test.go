package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gripes/internal/types"
)

func sampleClusters() []types.ComplaintCluster {
	return []types.ComplaintCluster{
		{
			ID: "c-0001", Seq: 1, Summary: "Camera is blurry", Count: 2,
			Feature: types.FeatureCamera, FeedbackType: types.FeedbackWorseThanCompetitor,
			Sources: map[types.Source]int{types.SourceReddit: 2},
			Examples: []types.ExampleRef{
				{ItemID: "a", Summary: "Camera is blurry", Source: types.SourceReddit, URL: "https://reddit.com/a"},
				{ItemID: "b", Summary: "blurry camera", Source: types.SourceReddit},
			},
		},
		{
			ID: "c-0002", Seq: 2, Summary: "Battery drains fast", Count: 3,
			Feature: types.FeatureBattery, FeedbackType: types.FeedbackWorseThanCompetitor,
			Sources: map[types.Source]int{types.SourceYouTube: 1, types.SourceReddit: 2},
			Examples: []types.ExampleRef{
				{ItemID: "c", Summary: "Battery drains fast", Source: types.SourceReddit},
			},
		},
		{
			ID: "c-0003", Seq: 3, Summary: "Love the glyph lights", Count: 2,
			Feature: types.FeatureDesign, FeedbackType: types.FeedbackVeryGoodFeature,
			Sources: map[types.Source]int{types.SourceTwitter: 2},
		},
	}
}

func TestClusterRowsOrdering(t *testing.T) {
	rows := ClusterRows(sampleClusters())
	require.Len(t, rows, 3)

	var ids []string
	for _, r := range rows {
		ids = append(ids, r.ClusterID)
	}
	assert.Equal(t, []string{"c-0002", "c-0001", "c-0003"}, ids, "count desc, ties by first-seen")
	assert.Equal(t, []string{"https://reddit.com/a", "b"}, rows[1].Examples)
	assert.Equal(t, "reddit:2;youtube:1", rows[0].SourceSummary())
}

func TestClusterRowsDoesNotAliasInput(t *testing.T) {
	clusters := sampleClusters()
	rows := ClusterRows(clusters)
	rows[0].Sources[types.SourceRSS] = 99
	assert.NotContains(t, clusters[1].Sources, types.SourceRSS)
	assert.Equal(t, "c-0001", clusters[0].ID)
}

func TestItemRows(t *testing.T) {
	rows := ItemRows(sampleClusters())
	require.Len(t, rows, 3)
	assert.Equal(t, "c-0002", rows[0].ClusterID)
	assert.Equal(t, "blurry camera", rows[2].Summary)
	assert.Equal(t, 1, rows[2].Count)
	assert.Equal(t, types.FeatureCamera, rows[2].Feature)
}

func TestTop(t *testing.T) {
	rows := ClusterRows(sampleClusters())
	assert.Len(t, Top(rows, 2), 2)
	assert.Len(t, Top(rows, 10), 3)
	assert.Len(t, Top(rows, 0), 3)
	assert.Len(t, FilterFeature(rows, types.FeatureBattery), 1)
}

func TestCSVRoundTrip(t *testing.T) {
	rows := ClusterRows(sampleClusters())
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "Summary,Count,Feature,Feedback Type,Sources,Examples", lines[0])
	assert.Equal(t, "Battery drains fast,3,battery,worse_than_competitor,reddit:2;youtube:1,c", lines[1])

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, back, 3)
	for i := range rows {
		assert.Equal(t, rows[i].Summary, back[i].Summary)
		assert.Equal(t, rows[i].Count, back[i].Count)
		assert.Equal(t, rows[i].Feature, back[i].Feature)
		assert.Equal(t, rows[i].FeedbackType, back[i].FeedbackType)
		assert.Equal(t, rows[i].Sources, back[i].Sources)
	}
	assert.Equal(t, []string{"https://reddit.com/a", "b"}, back[1].Examples)
}

func TestReadCSVTwoColumn(t *testing.T) {
	in := "Summary,Count\n\"Battery drains, fast\",12\nScreen too dim,4\n,9\n"
	rows, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Battery drains, fast", rows[0].Summary)
	assert.Equal(t, 12, rows[0].Count)
	assert.Equal(t, types.FeatureOther, rows[0].Feature)
	assert.Equal(t, types.FeedbackUnknown, rows[0].FeedbackType)
	assert.Equal(t, Row{Count: 9}, rows[2], "blank summaries are kept for the caller to skip")
}

func TestReadCSVBlankSummaryWithBadCount(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("Summary,Count\n  ,\nScreen too dim,4\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0].Summary)
	assert.Equal(t, 0, rows[0].Count)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{"missing count", "Summary,Feature\nx,camera\n", `missing "count" column`},
		{"bad count", "Summary,Count\nx,many\n", `line 2: invalid count "many"`},
		{"zero count", "Summary,Count\nx,1\ny,0\n", `line 3: invalid count "0"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	rows, err := ReadCSV(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseSourceSummary(t *testing.T) {
	got := ParseSourceSummary("reddit:2; YT:3;junk;twitter:x;rss:0")
	assert.Equal(t, map[types.Source]int{types.SourceReddit: 2, types.SourceYouTube: 3}, got)
}

func sampleMatrix() types.AggregateMatrix {
	m := types.NewAggregateMatrix()
	m.Add(types.FeatureBattery, types.FeedbackWorseThanCompetitor, types.SourceReddit, 3)
	m.Add(types.FeatureBattery, types.FeedbackVeryGoodFeature, types.SourceYouTube, 1)
	m.Add(types.FeatureCamera, types.FeedbackMissingFeature, types.SourceReddit, 4)
	return m
}

func TestWriteMatrixCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMatrixCSV(&buf, sampleMatrix()))
	want := "Feature,missing_feature,worse_than_competitor,very_good_feature,Total\n" +
		"camera,4,0,0,4\n" +
		"battery,0,3,1,4\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Top(ClusterRows(sampleClusters()), 1)))
	var back []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	require.Len(t, back, 1)
	assert.Equal(t, "c-0002", back[0]["cluster_id"])
	assert.Equal(t, float64(3), back[0]["count"])
}

func TestRenderTable(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	RenderTable(&buf, ClusterRows(sampleClusters()), RenderOptions{Title: "Top Complaints", SummaryWidth: 12, ShowSources: true})
	out := buf.String()
	assert.Contains(t, out, "=== Top Complaints ===")
	assert.Contains(t, out, "Battery d...")
	assert.Contains(t, out, "(reddit:2;youtube:1)")

	buf.Reset()
	RenderTable(&buf, nil, RenderOptions{})
	assert.Contains(t, buf.String(), "No complaints yet")
}

func TestRenderMatrix(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	RenderMatrix(&buf, sampleMatrix(), RenderOptions{BarWidth: 10})
	out := buf.String()
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "very_good")
	assert.Contains(t, out, "camera        █████░░░░░  50.0% (4)")
	assert.Contains(t, out, "reddit        ████████░░  87.5% (7)")
	assert.Contains(t, out, "youtube       █░░░░░░░░░  12.5% (1)")

	buf.Reset()
	RenderMatrix(&buf, types.NewAggregateMatrix(), RenderOptions{})
	assert.Contains(t, buf.String(), "No feedback aggregated")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "écran t...", truncate("écran trop sombre", 10))
	assert.Equal(t, "...", truncate("anything", 2))
}
