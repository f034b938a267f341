package types

import (
	"fmt"
	"strings"
	"time"
)

// FeedbackItem is one classified observation about a product.
// It is built once at the classifier boundary and never mutated afterwards.
type FeedbackItem struct {
	ID           string       `json:"id"`
	RawText      string       `json:"raw_text"`
	Summary      string       `json:"summary"`
	Feature      Feature      `json:"feature"`
	FeedbackType FeedbackType `json:"feedback_type"`
	Source       Source       `json:"source"`
	URL          string       `json:"url,omitempty"`
	Title        string       `json:"title,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Validate checks if the item can be folded into a cluster
func (i *FeedbackItem) Validate() error {
	if strings.TrimSpace(i.Summary) == "" {
		return &ValidationError{ItemID: i.ID, Reason: ReasonEmptySummary}
	}
	if len(i.Summary) > 1000 {
		return &ValidationError{ItemID: i.ID, Reason: ReasonMalformed,
			Detail: fmt.Sprintf("summary must be 1000 characters or less (got %d)", len(i.Summary))}
	}
	if i.Feature == "" {
		return &ValidationError{ItemID: i.ID, Reason: ReasonMalformed, Detail: "feature is required"}
	}
	if i.FeedbackType == "" {
		return &ValidationError{ItemID: i.ID, Reason: ReasonMalformed, Detail: "feedback_type is required"}
	}
	return nil
}

// RawItem is an unclassified post, comment or tweet as returned by a source connector.
type RawItem struct {
	ID        string    `json:"id"`
	Source    Source    `json:"source"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Classification is what the classifier boundary produces for one aspect of a raw item.
type Classification struct {
	Feature      Feature      `json:"feature"`
	FeedbackType FeedbackType `json:"feedback_type"`
	Summary      string       `json:"summary"`
}

// Validate checks the classifier output before it is trusted
func (c Classification) Validate() error {
	if strings.TrimSpace(c.Summary) == "" {
		return fmt.Errorf("summary is required")
	}
	if c.Feature == "" {
		return fmt.Errorf("feature is required")
	}
	if c.FeedbackType == "" {
		return fmt.Errorf("feedback_type is required")
	}
	return nil
}

// Feature is the product aspect a piece of feedback concerns.
// The set is open: labels outside the known set are kept verbatim.
type Feature string

const (
	FeatureDesign       Feature = "design"
	FeatureCamera       Feature = "camera"
	FeaturePerformance  Feature = "performance"
	FeatureBattery      Feature = "battery"
	FeatureSoftware     Feature = "software"
	FeatureDisplay      Feature = "display"
	FeaturePrice        Feature = "price"
	FeatureAudio        Feature = "audio"
	FeatureBuildQuality Feature = "build_quality"
	FeatureOther        Feature = "other" // Fallback for empty labels
)

// KnownFeatures lists the features the classifier is prompted with, in display order
var KnownFeatures = []Feature{
	FeatureDesign, FeatureCamera, FeaturePerformance, FeatureBattery, FeatureSoftware,
	FeatureDisplay, FeaturePrice, FeatureAudio, FeatureBuildQuality,
}

var featureAliases = map[string]Feature{
	"software_features": FeatureSoftware,
	"software_feature":  FeatureSoftware,
	"screen":            FeatureDisplay,
	"pricing":           FeaturePrice,
	"cost":              FeaturePrice,
	"sound":             FeatureAudio,
	"speakers":          FeatureAudio,
	"build":             FeatureBuildQuality,
}

// ParseFeature normalizes a classifier label into a Feature.
// Case, surrounding whitespace and separators are normalized; unknown labels survive.
func ParseFeature(s string) Feature {
	key := normalizeLabel(s)
	if key == "" {
		return FeatureOther
	}
	if f, ok := featureAliases[key]; ok {
		return f
	}
	return Feature(key)
}

// IsKnown reports whether the feature is one of the built-in labels
func (f Feature) IsKnown() bool {
	switch f {
	case FeatureDesign, FeatureCamera, FeaturePerformance, FeatureBattery, FeatureSoftware,
		FeatureDisplay, FeaturePrice, FeatureAudio, FeatureBuildQuality, FeatureOther:
		return true
	}
	return false
}

// FeedbackType is the polarity or category of an opinion about a feature
type FeedbackType string

const (
	FeedbackMissingFeature       FeedbackType = "missing_feature"
	FeedbackUnusefulFeature      FeedbackType = "unuseful_feature"
	FeedbackWorseThanCompetitor  FeedbackType = "worse_than_competitor"
	FeedbackVeryGoodFeature      FeedbackType = "very_good_feature"
	FeedbackBetterThanCompetitor FeedbackType = "better_than_competitor"
	FeedbackNeutral              FeedbackType = "neutral"
	FeedbackUnknown              FeedbackType = "unknown" // Fallback for empty labels
)

// KnownFeedbackTypes lists the feedback types in display order
var KnownFeedbackTypes = []FeedbackType{
	FeedbackMissingFeature, FeedbackUnusefulFeature, FeedbackWorseThanCompetitor,
	FeedbackVeryGoodFeature, FeedbackBetterThanCompetitor, FeedbackNeutral,
}

// Older prompt vocabulary still shows up in model output and saved files.
var feedbackTypeAliases = map[string]FeedbackType{
	"poor_compared_to_competitor": FeedbackWorseThanCompetitor,
	"unnecessary_feature":         FeedbackUnusefulFeature,
	"awesome":                     FeedbackVeryGoodFeature,
	"very_good":                   FeedbackVeryGoodFeature,
	"missing":                     FeedbackMissingFeature,
}

// ParseFeedbackType normalizes a classifier label into a FeedbackType
func ParseFeedbackType(s string) FeedbackType {
	key := normalizeLabel(s)
	if key == "" {
		return FeedbackUnknown
	}
	if t, ok := feedbackTypeAliases[key]; ok {
		return t
	}
	return FeedbackType(key)
}

// IsKnown reports whether the feedback type is one of the built-in labels
func (t FeedbackType) IsKnown() bool {
	switch t {
	case FeedbackMissingFeature, FeedbackUnusefulFeature, FeedbackWorseThanCompetitor,
		FeedbackVeryGoodFeature, FeedbackBetterThanCompetitor, FeedbackNeutral, FeedbackUnknown:
		return true
	}
	return false
}

// IsNegative reports whether the feedback type counts as a complaint
func (t FeedbackType) IsNegative() bool {
	switch t {
	case FeedbackMissingFeature, FeedbackUnusefulFeature, FeedbackWorseThanCompetitor:
		return true
	}
	return false
}

// Source identifies where a piece of feedback came from
type Source string

const (
	SourceReddit   Source = "reddit"
	SourceYouTube  Source = "youtube"
	SourceTwitter  Source = "twitter"
	SourceRSS      Source = "rss"
	SourceFile     Source = "file"
	SourceRestored Source = "restored" // Counts reloaded from a persisted run
	SourceOther    Source = "other"    // Fallback for empty labels
)

// ParseSource normalizes a source label
func ParseSource(s string) Source {
	key := normalizeLabel(s)
	switch key {
	case "":
		return SourceOther
	case "x":
		return SourceTwitter
	case "yt":
		return SourceYouTube
	}
	return Source(key)
}

// IsKnown reports whether the source is one of the built-in labels
func (s Source) IsKnown() bool {
	switch s {
	case SourceReddit, SourceYouTube, SourceTwitter, SourceRSS, SourceFile, SourceRestored, SourceOther:
		return true
	}
	return false
}

// normalizeLabel lowercases and joins words with underscores: "Build Quality" -> "build_quality"
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "/", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), "_")
}
