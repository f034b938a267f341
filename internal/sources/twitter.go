package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/steveyegge/gripes/internal/types"
)

// TwitterConfig configures the Twitter/X connector
type TwitterConfig struct {
	BearerToken    string // if empty, reads TWITTER_BEARER_TOKEN
	BaseURL        string // default: https://api.twitter.com/2
	RequestsPerSec float64
}

// TwitterSource searches recent tweets with the v2 API
type TwitterSource struct {
	cfg    TwitterConfig
	client *client
}

var _ Source = (*TwitterSource)(nil)

// NewTwitterSource creates a Twitter connector
func NewTwitterSource(cfg TwitterConfig) (*TwitterSource, error) {
	if cfg.BearerToken == "" {
		cfg.BearerToken = os.Getenv("TWITTER_BEARER_TOKEN")
		if cfg.BearerToken == "" {
			return nil, fmt.Errorf("TWITTER_BEARER_TOKEN not set")
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twitter.com/2"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &TwitterSource{
		cfg:    cfg,
		client: newClient(cfg.RequestsPerSec, 0, map[string]string{"Authorization": "Bearer " + cfg.BearerToken}),
	}, nil
}

// Name returns types.SourceTwitter
func (t *TwitterSource) Name() types.Source { return types.SourceTwitter }

type tweetsResponse struct {
	Data []struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		AuthorID  string    `json:"author_id"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
}

// Fetch returns up to limit recent English tweets, retweets excluded.
// When the token's access tier does not include search, the result is
// empty and the error wraps ErrAccessDenied.
func (t *TwitterSource) Fetch(ctx context.Context, query string, limit int) ([]types.RawItem, error) {
	// The API accepts 10..100
	if limit < 10 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	q := url.Values{}
	q.Set("query", query+" -is:retweet lang:en")
	q.Set("max_results", fmt.Sprint(limit))
	q.Set("tweet.fields", "created_at,author_id")

	var resp tweetsResponse
	if err := t.client.getJSON(ctx, t.cfg.BaseURL+"/tweets/search/recent?"+q.Encode(), &resp); err != nil {
		var status *HTTPStatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("twitter search: %w", ErrAccessDenied)
		}
		return nil, fmt.Errorf("twitter search: %w", err)
	}

	var items []types.RawItem
	for _, tw := range resp.Data {
		link := "https://twitter.com/i/web/status/" + tw.ID
		if it, ok := newItem(types.SourceTwitter, "", tw.Text, link, tw.AuthorID, tw.CreatedAt); ok {
			items = append(items, it)
		}
	}
	return items, nil
}
