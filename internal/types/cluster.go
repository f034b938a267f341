package types

import (
	"fmt"
	"time"
)

// ComplaintCluster is a canonical group of semantically equivalent feedback items.
type ComplaintCluster struct {
	ID           string         `json:"id"`
	Summary      string         `json:"summary"` // Representative text (first member's summary)
	Embedding    []float32      `json:"-"`
	Count        int            `json:"count"`
	Examples     []ExampleRef   `json:"examples"` // Most recent members, oldest first
	Feature      Feature        `json:"feature"`
	FeedbackType FeedbackType   `json:"feedback_type"`
	Sources      map[Source]int `json:"sources"`
	Seq          int            `json:"seq"` // First-seen order, starts at 1
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ExampleRef is the bounded trace an item leaves after it is folded into a cluster
type ExampleRef struct {
	ItemID    string    `json:"item_id"`
	Summary   string    `json:"summary"`
	Source    Source    `json:"source"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ExampleFromItem builds the example reference kept for an item
func ExampleFromItem(item *FeedbackItem) ExampleRef {
	return ExampleRef{
		ItemID:    item.ID,
		Summary:   item.Summary,
		Source:    item.Source,
		URL:       item.URL,
		CreatedAt: item.CreatedAt,
	}
}

// Clone returns a deep copy that shares no slices or maps with c
func (c *ComplaintCluster) Clone() ComplaintCluster {
	out := *c
	out.Embedding = append([]float32(nil), c.Embedding...)
	out.Examples = append([]ExampleRef(nil), c.Examples...)
	out.Sources = make(map[Source]int, len(c.Sources))
	for s, n := range c.Sources {
		out.Sources[s] = n
	}
	return out
}

// SourceTotal returns the sum of the per-source counts
func (c *ComplaintCluster) SourceTotal() int {
	total := 0
	for _, n := range c.Sources {
		total += n
	}
	return total
}

// Validate checks the cluster's structural invariants
func (c *ComplaintCluster) Validate() error {
	if c.Count < 1 {
		return fmt.Errorf("cluster %s: count must be at least 1 (got %d)", c.ID, c.Count)
	}
	if total := c.SourceTotal(); total != c.Count {
		return fmt.Errorf("cluster %s: count %d != sum of sources %d", c.ID, c.Count, total)
	}
	return nil
}
