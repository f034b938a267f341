// Package ai turns raw product feedback into (feature, feedback type, summary) triples
// using hosted language models, with retry and circuit breaking around every call.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/steveyegge/gripes/internal/types"
)

// Classifier labels one raw text with a feature, a feedback type and a one-line summary
type Classifier interface {
	// Classify returns the most prominent aspect of the text.
	// Failures, including unparseable model output, wrap types.ErrClassification.
	Classify(ctx context.Context, rawText, productContext string) (types.Classification, error)
}

// AspectClassifier can report several aspects from one post, one per feature mentioned
type AspectClassifier interface {
	Classifier
	ClassifyAspects(ctx context.Context, rawText, productContext string) ([]types.Classification, error)
}

// ErrNoFeedback means the model found nothing specific to report in the text
var ErrNoFeedback = errors.New("no specific feedback in text")

// Summaries that models emit instead of leaving an aspect out
var noContentPrefixes = []string{"no specific", "no feedback", "no mention", "not provided", "no comments"}

// IsNoContentSummary reports whether a summary is a placeholder rather than feedback
func IsNoContentSummary(summary string) bool {
	s := strings.ToLower(strings.TrimSpace(summary))
	for _, p := range noContentPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

var featureDescriptions = map[types.Feature]string{
	types.FeatureDesign:       "Overall look, aesthetics, and visual appeal",
	types.FeatureCamera:       "Photo and video capabilities, image quality",
	types.FeaturePerformance:  "Speed, responsiveness, and processing power",
	types.FeatureBattery:      "Battery life and charging capabilities",
	types.FeatureSoftware:     "OS, apps, and software functionality",
	types.FeatureDisplay:      "Screen quality, size, and display features",
	types.FeaturePrice:        "Cost and value proposition",
	types.FeatureAudio:        "Speaker quality, headphone jack, and audio features",
	types.FeatureBuildQuality: "Durability, materials, and construction quality",
}

// BuildClassificationPrompt builds the prompt shared by all model-backed classifiers
func BuildClassificationPrompt(product, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following feedback about %s and categorize it by feature and feedback type.\n", product)
	b.WriteString("Focus only on specific, meaningful feedback. Ignore generic or empty statements.\n\n")
	fmt.Fprintf(&b, "FEEDBACK:\n%s\n\n", truncateString(text, 6000))

	b.WriteString("FEATURES:\n")
	for _, f := range types.KnownFeatures {
		fmt.Fprintf(&b, "- %s: %s\n", f, featureDescriptions[f])
	}

	b.WriteString("\nFEEDBACK TYPES:\n")
	for _, t := range types.KnownFeedbackTypes {
		fmt.Fprintf(&b, "- %s\n", t)
	}

	b.WriteString(`
For each feature the feedback actually talks about, give:
1. feature: one of the features above
2. type: one of the feedback types above
3. summary: one short sentence describing the specific point, phrased so that the same
   complaint from different people reads the same way

Leave out features that are only mentioned without a concrete opinion.
If there is no specific feedback at all, return an empty list.

Respond with ONLY this JSON, no other text:
{
  "aspects": [
    {"feature": "build_quality", "type": "worse_than_competitor", "summary": "Back glass scratches easily compared to other phones"},
    {"feature": "software", "type": "missing_feature", "summary": "Lacks eSIM support in the standard version"}
  ]
}`)
	return b.String()
}

// aspectJSON is one entry of the model response
type aspectJSON struct {
	Feature string `json:"feature" jsonschema:"required,description=Product feature the point is about"`
	Type    string `json:"type" jsonschema:"required,description=Feedback type"`
	Summary string `json:"summary" jsonschema:"required,description=One-sentence summary of the specific point"`
}

// classificationResponse is the structured output the models are asked for
type classificationResponse struct {
	Aspects []aspectJSON `json:"aspects" jsonschema:"required"`
}

// DecodeClassification parses and validates a model response.
//
// Both the aspects-list format and the older feature-keyed object format
// ({"camera": {"type": ..., "summary": ...}}) are accepted; object keys are read in
// sorted order. Aspects with an unknown feedback type or a placeholder summary are
// dropped. Aspects whose labels normalise to the same feature are merged: the first
// keeps its feedback type and the summaries are joined with "; ". If the response had
// aspects but none survived, the output is rejected as unexpected.
func DecodeClassification(text string) ([]types.Classification, error) {
	raw, err := ParseJSON[map[string]json.RawMessage](text, "classification")
	if err != nil {
		return nil, err
	}

	var aspects []aspectJSON
	if list, ok := raw["aspects"]; ok {
		if err := json.Unmarshal(list, &aspects); err != nil {
			return nil, fmt.Errorf("classification: aspects is not a list: %w", err)
		}
	} else {
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, feature := range keys {
			body := raw[feature]
			var entry struct {
				Type    string `json:"type"`
				Summary string `json:"summary"`
			}
			if err := json.Unmarshal(body, &entry); err != nil {
				return nil, fmt.Errorf("classification: unexpected value for %q: %w", feature, err)
			}
			aspects = append(aspects, aspectJSON{Feature: feature, Type: entry.Type, Summary: entry.Summary})
		}
	}

	var out []types.Classification
	seen := make(map[types.Feature]int)
	for _, a := range aspects {
		c := types.Classification{
			Feature:      types.ParseFeature(a.Feature),
			FeedbackType: types.ParseFeedbackType(a.Type),
			Summary:      strings.TrimSpace(a.Summary),
		}
		if !c.FeedbackType.IsKnown() || c.FeedbackType == types.FeedbackUnknown {
			continue
		}
		if c.Summary == "" || IsNoContentSummary(c.Summary) {
			continue
		}
		if i, ok := seen[c.Feature]; ok {
			if !strings.Contains(out[i].Summary, c.Summary) {
				out[i].Summary += "; " + c.Summary
			}
			continue
		}
		seen[c.Feature] = len(out)
		out = append(out, c)
	}

	if len(out) == 0 && len(aspects) > 0 {
		return nil, fmt.Errorf("classification: no usable aspects in response: %s", truncateString(text, 200))
	}
	sortAspects(out)
	return out, nil
}

// sortAspects orders aspects by the known feature display order, then unknown
// features by name, so item IDs derived from aspect position do not shift.
func sortAspects(cs []types.Classification) {
	rank := func(f types.Feature) int {
		for i, k := range types.KnownFeatures {
			if k == f {
				return i
			}
		}
		return len(types.KnownFeatures)
	}
	sort.SliceStable(cs, func(i, j int) bool {
		ri, rj := rank(cs[i].Feature), rank(cs[j].Feature)
		if ri != rj {
			return ri < rj
		}
		return cs[i].Feature < cs[j].Feature
	})
}

// completeFunc sends a prompt to a model and returns its raw text output
type completeFunc func(ctx context.Context, prompt string) (string, error)

// promptClassifier implements AspectClassifier on top of any completion backend
type promptClassifier struct {
	provider string
	complete completeFunc
	retrier  *Retrier
	logger   *log.Logger
}

// ClassifyAspects returns every aspect the model reported, possibly none
func (c *promptClassifier) ClassifyAspects(ctx context.Context, rawText, productContext string) ([]types.Classification, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, &types.ClassificationError{Provider: c.provider, Err: fmt.Errorf("empty text")}
	}
	prompt := BuildClassificationPrompt(productContext, rawText)

	var output string
	err := c.retrier.Do(ctx, c.provider+" classify", func(attemptCtx context.Context) error {
		text, err := c.complete(attemptCtx, prompt)
		if err != nil {
			return err
		}
		output = text
		return nil
	})
	if err != nil {
		return nil, &types.ClassificationError{Provider: c.provider, Err: err}
	}

	aspects, err := DecodeClassification(output)
	if err != nil {
		c.logger.Warn("rejected model output", "provider", c.provider, "err", err)
		return nil, &types.ClassificationError{Provider: c.provider, Err: err}
	}
	return aspects, nil
}

// Classify returns the first aspect, or ErrNoFeedback when there is none
func (c *promptClassifier) Classify(ctx context.Context, rawText, productContext string) (types.Classification, error) {
	aspects, err := c.ClassifyAspects(ctx, rawText, productContext)
	if err != nil {
		return types.Classification{}, err
	}
	if len(aspects) == 0 {
		return types.Classification{}, &types.ClassificationError{Provider: c.provider, Err: ErrNoFeedback}
	}
	return aspects[0], nil
}
