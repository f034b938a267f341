package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseFeature(t *testing.T) {
	tests := []struct {
		input string
		want  Feature
		known bool
	}{
		{"camera", FeatureCamera, true},
		{"  Battery ", FeatureBattery, true},
		{"Build Quality", FeatureBuildQuality, true},
		{"build-quality", FeatureBuildQuality, true},
		{"software features", FeatureSoftware, true},
		{"Screen", FeatureDisplay, true},
		{"", FeatureOther, true},
		{"   ", FeatureOther, true},
		{"Haptic Feedback", Feature("haptic_feedback"), false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseFeature(tt.input)
			if got != tt.want {
				t.Errorf("ParseFeature(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if got.IsKnown() != tt.known {
				t.Errorf("ParseFeature(%q).IsKnown() = %v, want %v", tt.input, got.IsKnown(), tt.known)
			}
		})
	}
}

func TestParseFeedbackType(t *testing.T) {
	tests := []struct {
		input string
		want  FeedbackType
	}{
		{"missing_feature", FeedbackMissingFeature},
		{"Worse Than Competitor", FeedbackWorseThanCompetitor},
		{"poor_compared_to_competitor", FeedbackWorseThanCompetitor},
		{"unnecessary_feature", FeedbackUnusefulFeature},
		{"awesome", FeedbackVeryGoodFeature},
		{"", FeedbackUnknown},
		{"mixed", FeedbackType("mixed")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFeedbackType(tt.input); got != tt.want {
				t.Errorf("ParseFeedbackType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	if FeedbackType("mixed").IsKnown() {
		t.Error("unknown feedback type reported as known")
	}
	if !FeedbackWorseThanCompetitor.IsNegative() || FeedbackVeryGoodFeature.IsNegative() {
		t.Error("IsNegative misclassified a built-in type")
	}
}

func TestParseSource(t *testing.T) {
	if got := ParseSource("X"); got != SourceTwitter {
		t.Errorf("ParseSource(X) = %q, want twitter", got)
	}
	if got := ParseSource(""); got != SourceOther {
		t.Errorf("ParseSource(\"\") = %q, want other", got)
	}
	if got := ParseSource("Hacker News"); got != Source("hacker_news") || got.IsKnown() {
		t.Errorf("ParseSource(Hacker News) = %q (known=%v)", got, got.IsKnown())
	}
}

func TestFeedbackItemValidate(t *testing.T) {
	tests := []struct {
		name       string
		item       FeedbackItem
		wantReason string
	}{
		{
			name:       "valid item",
			item:       FeedbackItem{ID: "a", Summary: "screen is too dim", Feature: FeatureDisplay, FeedbackType: FeedbackWorseThanCompetitor},
			wantReason: "",
		},
		{
			name:       "whitespace summary",
			item:       FeedbackItem{ID: "b", Summary: " \t\n", Feature: FeatureDisplay, FeedbackType: FeedbackNeutral},
			wantReason: ReasonEmptySummary,
		},
		{
			name:       "missing feature",
			item:       FeedbackItem{ID: "c", Summary: "ok", FeedbackType: FeedbackNeutral},
			wantReason: ReasonMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", verr.Reason, tt.wantReason)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("errors.Is(err, ErrValidation) = false")
			}
		})
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("quota exceeded")
	embedErr := fmt.Errorf("item x: %w", &EmbeddingError{Provider: "openai", Err: cause})
	classErr := &ClassificationError{Provider: "anthropic", Err: cause}
	dimErr := &DimensionMismatchError{Expected: 1536, Got: 768}

	if !errors.Is(embedErr, ErrEmbedding) || !errors.Is(embedErr, cause) {
		t.Error("EmbeddingError should match ErrEmbedding and its cause")
	}
	if !errors.Is(classErr, ErrClassification) || errors.Is(classErr, ErrEmbedding) {
		t.Error("ClassificationError matched the wrong sentinel")
	}
	if !errors.Is(dimErr, ErrDimensionMismatch) || errors.Is(dimErr, ErrValidation) {
		t.Error("DimensionMismatchError matched the wrong sentinel")
	}
	if !errors.Is(&StateConsistencyError{Detail: "x"}, ErrStateConsistency) {
		t.Error("StateConsistencyError should match ErrStateConsistency")
	}

	if got := SkipReason(embedErr); got != "embedding_failed" {
		t.Errorf("SkipReason(embedding) = %q", got)
	}
	if got := SkipReason(classErr); got != "classification_failed" {
		t.Errorf("SkipReason(classification) = %q", got)
	}
	if got := SkipReason(&ValidationError{Reason: ReasonTooShort}); got != ReasonTooShort {
		t.Errorf("SkipReason(validation) = %q", got)
	}
}

func TestAggregateMatrix(t *testing.T) {
	m := NewAggregateMatrix()
	m.Add(FeatureDisplay, FeedbackWorseThanCompetitor, SourceReddit, 1)
	m.Add(FeatureDisplay, FeedbackWorseThanCompetitor, SourceYouTube, 1)
	m.Add(FeatureBattery, FeedbackMissingFeature, SourceReddit, 1)
	m.Add(Feature("haptics"), FeedbackNeutral, SourceTwitter, 1)

	if m.Total() != 4 {
		t.Errorf("Total() = %d, want 4", m.Total())
	}
	if m.Cell(FeatureDisplay, FeedbackWorseThanCompetitor) != 2 {
		t.Errorf("display cell = %d, want 2", m.Cell(FeatureDisplay, FeedbackWorseThanCompetitor))
	}

	features := m.Features()
	want := []Feature{FeatureBattery, FeatureDisplay, Feature("haptics")}
	if fmt.Sprint(features) != fmt.Sprint(want) {
		t.Errorf("Features() = %v, want %v", features, want)
	}
	if names := m.SourceNames(); names[0] != SourceReddit {
		t.Errorf("SourceNames()[0] = %q, want reddit", names[0])
	}

	clone := m.Clone()
	clone.Add(FeatureDisplay, FeedbackNeutral, SourceRSS, 1)
	if m.Cell(FeatureDisplay, FeedbackNeutral) != 0 {
		t.Error("mutating a clone changed the original")
	}
	if m.Equal(clone) {
		t.Error("Equal() = true for different matrices")
	}

	// Zero cells and absent cells compare equal
	withZero := m.Clone()
	withZero.Add(FeatureCamera, FeedbackNeutral, SourceFile, 0)
	if !m.Equal(withZero) {
		t.Errorf("Equal() = false with explicit zero cell: %s", m.Diff(withZero))
	}
}

func TestComplaintClusterCloneAndValidate(t *testing.T) {
	c := ComplaintCluster{
		ID:        "c-0001",
		Count:     2,
		Embedding: []float32{1, 0},
		Sources:   map[Source]int{SourceReddit: 1, SourceYouTube: 1},
		Examples:  []ExampleRef{{ItemID: "a"}},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	clone := c.Clone()
	clone.Embedding[0] = 9
	clone.Sources[SourceReddit] = 5
	clone.Examples[0].ItemID = "z"
	if c.Embedding[0] != 1 || c.Sources[SourceReddit] != 1 || c.Examples[0].ItemID != "a" {
		t.Error("Clone shares state with the original")
	}

	c.Count = 3
	if err := c.Validate(); err == nil {
		t.Error("Validate() accepted count != sum(sources)")
	}
}
