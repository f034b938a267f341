package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/gripes/internal/logging"
)

// Pre-compiled patterns for model output cleanup
var (
	// Matches ```json\n{...}\n```, ```{...}```, etc.
	codeFenceRegex = regexp.MustCompile("(?s)`{3}(?:json|javascript|js)?\\s*\\n?(.*?)\\n?`{3}")

	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)^\s*//.*$`)
)

// maxParseInput bounds how much model output we try to parse
const maxParseInput = 1 << 20

// ParseJSON decodes model output into T, tolerating the usual quirks of LLM JSON:
// code fences, prose around the object, trailing commas and line comments.
// It never guesses: if no strategy yields valid JSON for T, it returns an error.
//
// Strategy sequence:
//  1. Direct parse
//  2. Strip code fences
//  3. Remove trailing commas and comments
//  4. Extract the outermost object or array from mixed content
func ParseJSON[T any](text, context string) (T, error) {
	var zero T
	if len(text) > maxParseInput {
		return zero, fmt.Errorf("%s: response exceeds %d bytes", context, maxParseInput)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("%s: empty response", context)
	}

	candidates := []string{trimmed}
	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	for _, c := range append([]string(nil), candidates...) {
		candidates = append(candidates, cleanupJSON(c))
	}
	for _, c := range append([]string(nil), candidates...) {
		if extracted := extractJSON(c); extracted != "" {
			candidates = append(candidates, extracted, cleanupJSON(extracted))
		}
	}

	var firstErr error
	for i, c := range candidates {
		var out T
		err := json.Unmarshal([]byte(c), &out)
		if err == nil {
			if i > 0 {
				logging.Logger.Debug("parsed model JSON after cleanup", "context", context, "strategy", i)
			}
			return out, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return zero, fmt.Errorf("%s: unparseable JSON response (%v): %s", context, firstErr, truncateString(trimmed, 200))
}

func cleanupJSON(s string) string {
	s = singleLineCommentRegex.ReplaceAllString(s, "")
	s = trailingCommaRegex.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// extractJSON returns the span from the first '{' or '[' to its last matching closer
func extractJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}

// truncateString truncates a string to maxLen characters, adding "..." if truncated
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
