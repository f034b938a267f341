package sources

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/steveyegge/gripes/internal/types"
)

// YouTubeConfig configures the YouTube connector
type YouTubeConfig struct {
	APIKey           string // if empty, reads YOUTUBE_API_KEY
	BaseURL          string // default: https://www.googleapis.com/youtube/v3
	CommentsPerVideo int    // default: 10
	RequestsPerSec   float64
}

// YouTubeSource reads top-level comments on videos matching a query
type YouTubeSource struct {
	cfg    YouTubeConfig
	client *client
	policy *bluemonday.Policy
}

var _ Source = (*YouTubeSource)(nil)

// NewYouTubeSource creates a YouTube Data API v3 connector
func NewYouTubeSource(cfg YouTubeConfig) (*YouTubeSource, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("YOUTUBE_API_KEY")
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("YOUTUBE_API_KEY not set")
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/youtube/v3"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.CommentsPerVideo <= 0 {
		cfg.CommentsPerVideo = 10
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	return &YouTubeSource{
		cfg:    cfg,
		client: newClient(cfg.RequestsPerSec, 0, nil),
		policy: bluemonday.StrictPolicy(),
	}, nil
}

// Name returns types.SourceYouTube
func (y *YouTubeSource) Name() types.Source { return types.SourceYouTube }

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

type youtubeThreadsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			TopLevelComment struct {
				ID      string `json:"id"`
				Snippet struct {
					TextDisplay       string    `json:"textDisplay"`
					AuthorDisplayName string    `json:"authorDisplayName"`
					PublishedAt       time.Time `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

// Fetch searches up to limit videos and returns their top comments.
// Videos with comments disabled are skipped.
func (y *YouTubeSource) Fetch(ctx context.Context, query string, limit int) ([]types.RawItem, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50 // API page size maximum
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("q", query)
	q.Set("type", "video")
	q.Set("maxResults", fmt.Sprint(limit))
	q.Set("key", y.cfg.APIKey)

	var search youtubeSearchResponse
	if err := y.client.getJSON(ctx, y.cfg.BaseURL+"/search?"+q.Encode(), &search); err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	var items []types.RawItem
	for _, v := range search.Items {
		if v.ID.VideoID == "" {
			continue
		}
		tq := url.Values{}
		tq.Set("part", "snippet")
		tq.Set("videoId", v.ID.VideoID)
		tq.Set("maxResults", fmt.Sprint(y.cfg.CommentsPerVideo))
		tq.Set("order", "relevance")
		tq.Set("textFormat", "html")
		tq.Set("key", y.cfg.APIKey)

		var threads youtubeThreadsResponse
		if err := y.client.getJSON(ctx, y.cfg.BaseURL+"/commentThreads?"+tq.Encode(), &threads); err != nil {
			if ctx.Err() != nil {
				return items, ctx.Err()
			}
			continue
		}

		title := html.UnescapeString(v.Snippet.Title)
		for _, t := range threads.Items {
			c := t.Snippet.TopLevelComment
			text := y.plainText(c.Snippet.TextDisplay)
			link := fmt.Sprintf("https://www.youtube.com/watch?v=%s&lc=%s", v.ID.VideoID, c.ID)
			if it, ok := newItem(types.SourceYouTube, title, text, link, c.Snippet.AuthorDisplayName, c.Snippet.PublishedAt); ok {
				items = append(items, it)
			}
		}
	}
	return items, nil
}

// plainText strips markup from comment HTML and decodes entities
func (y *YouTubeSource) plainText(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	return html.UnescapeString(y.policy.Sanitize(s))
}
