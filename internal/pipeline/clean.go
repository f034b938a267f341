package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/gripes/internal/types"
)

var (
	urlPattern   = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
	symbolRun    = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?']+`)
	nonWordRun   = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	spaceRun     = regexp.MustCompile(`[ \t\f\r]+`)
	blankLineRun = regexp.MustCompile(`\n\s*\n+`)
)

// CleanText strips URLs and symbols and collapses whitespace.
// Sentence punctuation and line breaks survive so classifiers can still tell
// where one remark ends and the next begins.
func CleanText(text string) string {
	text = urlPattern.ReplaceAllString(text, " ")
	text = symbolRun.ReplaceAllString(text, " ")
	text = spaceRun.ReplaceAllString(text, " ")
	text = blankLineRun.ReplaceAllString(text, "\n")

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// WordCount counts words after treating every non-word character as a separator
func WordCount(text string) int {
	return len(strings.Fields(nonWordRun.ReplaceAllString(text, " ")))
}

// Admit cleans a raw item's text and checks it is long enough to carry an opinion.
// Items below minWords fail with a too_short ValidationError.
func Admit(item types.RawItem, minWords int) (string, error) {
	cleaned := CleanText(item.Text)
	if n := WordCount(cleaned); n < minWords {
		return "", &types.ValidationError{
			ItemID: item.ID,
			Reason: types.ReasonTooShort,
			Detail: pluralWords(n, minWords),
		}
	}
	return cleaned, nil
}

// NormalizeSummary collapses whitespace and drops trailing sentence punctuation
func NormalizeSummary(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, " .")
}

func pluralWords(n, need int) string {
	if n == 1 {
		return fmt.Sprintf("1 word, need at least %d", need)
	}
	return fmt.Sprintf("%d words, need at least %d", n, need)
}
