package ai

import (
	"context"
	"regexp"
	"strings"

	"github.com/steveyegge/gripes/internal/types"
)

// KeywordClassifier is a rule-based classifier for offline runs and tests.
// It spots features by keyword and polarity by cue phrases; the summary is the
// sentence that mentioned the feature.
type KeywordClassifier struct{}

// Compile-time check that KeywordClassifier implements AspectClassifier
var _ AspectClassifier = KeywordClassifier{}

var featureKeywords = map[types.Feature][]string{
	types.FeatureDesign:       {"design", "look", "looks", "color", "colour", "aesthetic", "ugly", "beautiful", "bezel"},
	types.FeatureCamera:       {"camera", "photo", "photos", "picture", "video", "lens", "zoom", "selfie"},
	types.FeaturePerformance:  {"performance", "lag", "laggy", "slow", "fast", "smooth", "stutter", "chip", "processor", "gaming"},
	types.FeatureBattery:      {"battery", "charge", "charging", "charger", "drain", "drains", "mah"},
	types.FeatureSoftware:     {"software", "update", "app", "apps", "os", "android", "ios", "bug", "bugs", "esim", "feature"},
	types.FeatureDisplay:      {"display", "screen", "brightness", "dim", "refresh", "oled", "resolution"},
	types.FeaturePrice:        {"price", "expensive", "cheap", "cost", "worth", "value", "overpriced"},
	types.FeatureAudio:        {"audio", "speaker", "speakers", "sound", "headphone", "jack", "volume", "mic"},
	types.FeatureBuildQuality: {"build", "durable", "durability", "scratch", "scratches", "glass", "plastic", "sturdy", "cracked"},
}

var (
	missingCues = []string{"missing", "lacks", "lack of", "no ", "doesn't have", "does not have", "wish it had", "without"}
	worseCues   = []string{"worse than", "behind", "not as good", "compared to", "than my old", "inferior"}
	betterCues  = []string{"better than", "beats", "ahead of", "superior"}
	goodCues    = []string{"great", "amazing", "awesome", "love", "excellent", "fantastic", "impressive", "best"}
	uselessCues = []string{"useless", "pointless", "gimmick", "unnecessary", "never use"}
	badCues     = []string{"terrible", "awful", "bad", "poor", "hate", "dies", "broke", "too dim", "too dark", "laggy", "slow", "drains"}

	sentenceSplit = regexp.MustCompile(`[.!?\n]+`)
	wordSplit     = regexp.MustCompile(`[^a-z0-9']+`)
)

// ClassifyAspects returns one aspect per feature with a keyword hit, in display order
func (KeywordClassifier) ClassifyAspects(ctx context.Context, rawText, productContext string) ([]types.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.ClassificationError{Provider: "keyword", Err: err}
	}
	var out []types.Classification
	for _, sentence := range sentenceSplit.Split(rawText, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := " " + strings.ToLower(sentence) + " "
		words := make(map[string]bool)
		for _, w := range wordSplit.Split(lower, -1) {
			words[w] = true
		}
		for _, f := range types.KnownFeatures {
			if hasAspect(out, f) || !matchesAny(words, featureKeywords[f]) {
				continue
			}
			out = append(out, types.Classification{
				Feature:      f,
				FeedbackType: polarity(lower),
				Summary:      sentence,
			})
		}
	}
	return out, nil
}

// Classify returns the first aspect found
func (k KeywordClassifier) Classify(ctx context.Context, rawText, productContext string) (types.Classification, error) {
	aspects, err := k.ClassifyAspects(ctx, rawText, productContext)
	if err != nil {
		return types.Classification{}, err
	}
	if len(aspects) == 0 {
		return types.Classification{}, &types.ClassificationError{Provider: "keyword", Err: ErrNoFeedback}
	}
	return aspects[0], nil
}

func polarity(lower string) types.FeedbackType {
	switch {
	case containsAny(lower, betterCues):
		return types.FeedbackBetterThanCompetitor
	case containsAny(lower, worseCues):
		return types.FeedbackWorseThanCompetitor
	case containsAny(lower, uselessCues):
		return types.FeedbackUnusefulFeature
	case containsAny(lower, missingCues):
		return types.FeedbackMissingFeature
	case containsAny(lower, badCues):
		return types.FeedbackWorseThanCompetitor
	case containsAny(lower, goodCues):
		return types.FeedbackVeryGoodFeature
	}
	return types.FeedbackNeutral
}

func hasAspect(cs []types.Classification, f types.Feature) bool {
	for _, c := range cs {
		if c.Feature == f {
			return true
		}
	}
	return false
}

func matchesAny(words map[string]bool, keywords []string) bool {
	for _, k := range keywords {
		if words[k] {
			return true
		}
	}
	return false
}

func containsAny(s string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}
