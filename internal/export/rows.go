// Package export turns engine snapshots into ranked rows, CSV and JSON files,
// and coloured terminal tables.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/steveyegge/gripes/internal/types"
)

// Row is one line of a complaints report.
// At cluster granularity Count is the cluster size; at item granularity each row is
// one retained example and Count is 1.
type Row struct {
	ClusterID    string               `json:"cluster_id,omitempty"`
	Summary      string               `json:"summary"`
	Count        int                  `json:"count"`
	Feature      types.Feature        `json:"feature"`
	FeedbackType types.FeedbackType   `json:"feedback_type"`
	Sources      map[types.Source]int `json:"sources,omitempty"`
	Examples     []string             `json:"examples,omitempty"`
}

// Rank returns a copy of clusters ordered largest first. Ties keep first-seen order.
func Rank(clusters []types.ComplaintCluster) []types.ComplaintCluster {
	sorted := make([]types.ComplaintCluster, len(clusters))
	copy(sorted, clusters)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	return sorted
}

// ClusterRows returns one row per cluster in Rank order
func ClusterRows(clusters []types.ComplaintCluster) []Row {
	sorted := Rank(clusters)
	rows := make([]Row, 0, len(sorted))
	for _, c := range sorted {
		sources := make(map[types.Source]int, len(c.Sources))
		for s, n := range c.Sources {
			sources[s] = n
		}
		var examples []string
		for _, ex := range c.Examples {
			examples = append(examples, exampleRef(ex))
		}
		rows = append(rows, Row{
			ClusterID:    c.ID,
			Summary:      c.Summary,
			Count:        c.Count,
			Feature:      c.Feature,
			FeedbackType: c.FeedbackType,
			Sources:      sources,
			Examples:     examples,
		})
	}
	return rows
}

// ItemRows returns one row per retained example, grouped by cluster in ClusterRows order
func ItemRows(clusters []types.ComplaintCluster) []Row {
	byID := make(map[string]types.ComplaintCluster, len(clusters))
	for _, c := range clusters {
		byID[c.ID] = c
	}
	var rows []Row
	for _, cr := range ClusterRows(clusters) {
		for _, ex := range byID[cr.ClusterID].Examples {
			rows = append(rows, Row{
				ClusterID:    cr.ClusterID,
				Summary:      ex.Summary,
				Count:        1,
				Feature:      cr.Feature,
				FeedbackType: cr.FeedbackType,
				Sources:      map[types.Source]int{ex.Source: 1},
				Examples:     []string{exampleRef(ex)},
			})
		}
	}
	return rows
}

// Top returns the first n rows. A non-positive n returns every row.
func Top(rows []Row, n int) []Row {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}

// FilterFeature keeps rows for one feature
func FilterFeature(rows []Row, f types.Feature) []Row {
	var out []Row
	for _, r := range rows {
		if r.Feature == f {
			out = append(out, r)
		}
	}
	return out
}

// SourceSummary formats per-source counts as "reddit:2;youtube:1", largest first
func (r Row) SourceSummary() string {
	names := make([]types.Source, 0, len(r.Sources))
	for s := range r.Sources {
		names = append(names, s)
	}
	sort.Slice(names, func(i, j int) bool {
		if r.Sources[names[i]] != r.Sources[names[j]] {
			return r.Sources[names[i]] > r.Sources[names[j]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, len(names))
	for i, s := range names {
		parts[i] = fmt.Sprintf("%s:%d", s, r.Sources[s])
	}
	return strings.Join(parts, ";")
}

// ParseSourceSummary is the inverse of SourceSummary. Malformed parts are ignored.
func ParseSourceSummary(s string) map[types.Source]int {
	out := make(map[types.Source]int)
	for _, part := range strings.Split(s, ";") {
		name, n, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		count, err := strconv.Atoi(n)
		if err != nil || count <= 0 {
			continue
		}
		out[types.ParseSource(name)] += count
	}
	return out
}

// exampleRef prefers the permalink and falls back to the item ID
func exampleRef(ex types.ExampleRef) string {
	if ex.URL != "" {
		return ex.URL
	}
	return ex.ItemID
}
