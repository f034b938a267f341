package types

import (
	"fmt"
	"sort"
)

// AggregateMatrix is the feature x feedback-type count table plus the per-source distribution.
// It is a derived view: it always equals the sum of every cluster's contribution.
type AggregateMatrix struct {
	Cells   map[Feature]map[FeedbackType]int `json:"cells"`
	Sources map[Source]int                   `json:"sources"`
}

// NewAggregateMatrix returns an empty matrix
func NewAggregateMatrix() AggregateMatrix {
	return AggregateMatrix{
		Cells:   make(map[Feature]map[FeedbackType]int),
		Sources: make(map[Source]int),
	}
}

// Add applies a delta to one cell and one source bucket
func (m *AggregateMatrix) Add(f Feature, t FeedbackType, s Source, delta int) {
	row, ok := m.Cells[f]
	if !ok {
		row = make(map[FeedbackType]int)
		m.Cells[f] = row
	}
	row[t] += delta
	m.Sources[s] += delta
}

// Cell returns the count for one (feature, feedback type) pair
func (m AggregateMatrix) Cell(f Feature, t FeedbackType) int {
	return m.Cells[f][t]
}

// FeatureTotal returns the row sum for a feature
func (m AggregateMatrix) FeatureTotal(f Feature) int {
	total := 0
	for _, n := range m.Cells[f] {
		total += n
	}
	return total
}

// Total returns the number of items counted in the matrix
func (m AggregateMatrix) Total() int {
	total := 0
	for f := range m.Cells {
		total += m.FeatureTotal(f)
	}
	return total
}

// Features returns the features present, known ones first in display order, then the rest sorted
func (m AggregateMatrix) Features() []Feature {
	var out []Feature
	seen := make(map[Feature]bool)
	for _, f := range KnownFeatures {
		if _, ok := m.Cells[f]; ok {
			out = append(out, f)
			seen[f] = true
		}
	}
	var extra []Feature
	for f := range m.Cells {
		if !seen[f] {
			extra = append(extra, f)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// FeedbackTypes returns the feedback types present in any row, in display order
func (m AggregateMatrix) FeedbackTypes() []FeedbackType {
	present := make(map[FeedbackType]bool)
	for _, row := range m.Cells {
		for t := range row {
			present[t] = true
		}
	}
	var out []FeedbackType
	for _, t := range KnownFeedbackTypes {
		if present[t] {
			out = append(out, t)
			delete(present, t)
		}
	}
	var extra []FeedbackType
	for t := range present {
		extra = append(extra, t)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// SourceNames returns the sources present, sorted by count descending then name
func (m AggregateMatrix) SourceNames() []Source {
	out := make([]Source, 0, len(m.Sources))
	for s := range m.Sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if m.Sources[out[i]] != m.Sources[out[j]] {
			return m.Sources[out[i]] > m.Sources[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// Clone returns a deep copy
func (m AggregateMatrix) Clone() AggregateMatrix {
	out := NewAggregateMatrix()
	for f, row := range m.Cells {
		cp := make(map[FeedbackType]int, len(row))
		for t, n := range row {
			cp[t] = n
		}
		out.Cells[f] = cp
	}
	for s, n := range m.Sources {
		out.Sources[s] = n
	}
	return out
}

// Equal compares two matrices, treating zero cells and absent cells as the same
func (m AggregateMatrix) Equal(other AggregateMatrix) bool {
	return m.Diff(other) == ""
}

// Diff describes the first difference between two matrices, or returns "" when they match
func (m AggregateMatrix) Diff(other AggregateMatrix) string {
	if d := diffCells(m, other); d != "" {
		return d
	}
	if d := diffCells(other, m); d != "" {
		return d
	}
	for s, n := range m.Sources {
		if other.Sources[s] != n {
			return fmt.Sprintf("source %s: %d != %d", s, n, other.Sources[s])
		}
	}
	for s, n := range other.Sources {
		if m.Sources[s] != n {
			return fmt.Sprintf("source %s: %d != %d", s, m.Sources[s], n)
		}
	}
	return ""
}

func diffCells(a, b AggregateMatrix) string {
	for f, row := range a.Cells {
		for t, n := range row {
			if b.Cell(f, t) != n {
				return fmt.Sprintf("cell (%s, %s): %d != %d", f, t, n, b.Cell(f, t))
			}
		}
	}
	return ""
}
