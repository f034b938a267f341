package sources

import (
	"fmt"
	"strings"

	"github.com/steveyegge/gripes/internal/types"
)

// Options carries per-connector settings for Build
type Options struct {
	Reddit  RedditConfig
	YouTube YouTubeConfig
	Twitter TwitterConfig
	RSSURL  string
	File    string
}

// Build creates the connectors named in names ("reddit", "youtube", "twitter", "rss", "file").
// Names are matched case-insensitively; "x" and "yt" are accepted as aliases.
func Build(names []string, opts Options) ([]Source, error) {
	var out []Source
	seen := make(map[types.Source]bool)
	for _, n := range names {
		name := types.ParseSource(n)
		if strings.TrimSpace(n) == "" || seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case types.SourceReddit:
			out = append(out, NewRedditSource(opts.Reddit))
		case types.SourceYouTube:
			s, err := NewYouTubeSource(opts.YouTube)
			if err != nil {
				return nil, fmt.Errorf("youtube: %w", err)
			}
			out = append(out, s)
		case types.SourceTwitter:
			s, err := NewTwitterSource(opts.Twitter)
			if err != nil {
				return nil, fmt.Errorf("twitter: %w", err)
			}
			out = append(out, s)
		case types.SourceRSS:
			out = append(out, NewRSSSource(opts.RSSURL))
		case types.SourceFile:
			if opts.File == "" {
				return nil, fmt.Errorf("file source needs a path")
			}
			out = append(out, NewFileSource(opts.File))
		default:
			return nil, fmt.Errorf("unknown source %q (want reddit, youtube, twitter, rss or file)", n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sources selected")
	}
	return out, nil
}
