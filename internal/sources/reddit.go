package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/steveyegge/gripes/internal/types"
)

// RedditConfig configures the Reddit connector
type RedditConfig struct {
	BaseURL         string   // default: https://www.reddit.com
	Subreddits      []string // searched in order; empty means site-wide search
	CommentsPerPost int      // default: 25
	UserAgent       string   // Reddit asks for a descriptive UA; default UserAgent
	RequestsPerSec  float64  // default: 1 (unauthenticated API limit)
}

// RedditSource searches Reddit's public JSON listing endpoints.
// Each post body and each comment becomes its own item.
type RedditSource struct {
	cfg    RedditConfig
	client *client
}

var _ Source = (*RedditSource)(nil)

// NewRedditSource creates a Reddit connector
func NewRedditSource(cfg RedditConfig) *RedditSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.reddit.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.CommentsPerPost <= 0 {
		cfg.CommentsPerPost = 25
	}
	headers := map[string]string{}
	if cfg.UserAgent != "" {
		headers["User-Agent"] = cfg.UserAgent
	}
	return &RedditSource{cfg: cfg, client: newClient(cfg.RequestsPerSec, 0, headers)}
}

// Name returns types.SourceReddit
func (r *RedditSource) Name() types.Source { return types.SourceReddit }

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	NumComments int     `json:"num_comments"`
}

type redditComment struct {
	ID         string          `json:"id"`
	Body       string          `json:"body"`
	Author     string          `json:"author"`
	Permalink  string          `json:"permalink"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"` // "" or a listing
}

// Fetch returns up to limit posts matching query, each followed by its comments
func (r *RedditSource) Fetch(ctx context.Context, query string, limit int) ([]types.RawItem, error) {
	if limit <= 0 {
		limit = 25
	}
	posts, err := r.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	var items []types.RawItem
	for _, p := range posts {
		link := r.cfg.BaseURL + p.Permalink
		created := time.Unix(int64(p.CreatedUTC), 0).UTC()
		text := p.Title
		if body := strings.TrimSpace(p.Selftext); body != "" {
			text = p.Title + "\n\n" + body
		}
		if it, ok := newItem(types.SourceReddit, p.Title, text, link, p.Author, created); ok {
			items = append(items, it)
		}
		if p.NumComments == 0 {
			continue
		}
		comments, err := r.comments(ctx, p.ID)
		if err != nil {
			if ctx.Err() != nil {
				return items, ctx.Err()
			}
			// One unreadable thread should not lose the rest of the search
			continue
		}
		for _, c := range comments {
			clink := link
			if c.Permalink != "" {
				clink = r.cfg.BaseURL + c.Permalink
			}
			if it, ok := newItem(types.SourceReddit, p.Title, c.Body, clink, c.Author,
				time.Unix(int64(c.CreatedUTC), 0).UTC()); ok {
				items = append(items, it)
			}
		}
	}
	return items, nil
}

func (r *RedditSource) search(ctx context.Context, query string, limit int) ([]redditPost, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", fmt.Sprint(limit))
	q.Set("sort", "relevance")
	q.Set("type", "link")

	var endpoints []string
	if len(r.cfg.Subreddits) == 0 {
		endpoints = []string{r.cfg.BaseURL + "/search.json?" + q.Encode()}
	} else {
		q.Set("restrict_sr", "1")
		for _, sub := range r.cfg.Subreddits {
			endpoints = append(endpoints, fmt.Sprintf("%s/r/%s/search.json?%s", r.cfg.BaseURL, url.PathEscape(sub), q.Encode()))
		}
	}

	seen := make(map[string]bool)
	var posts []redditPost
	for _, endpoint := range endpoints {
		var listing redditListing
		if err := r.client.getJSON(ctx, endpoint, &listing); err != nil {
			return posts, fmt.Errorf("reddit search: %w", err)
		}
		for _, child := range listing.Data.Children {
			if child.Kind != "t3" {
				continue
			}
			var p redditPost
			if err := json.Unmarshal(child.Data, &p); err != nil || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			posts = append(posts, p)
			if len(posts) >= limit {
				return posts, nil
			}
		}
	}
	return posts, nil
}

func (r *RedditSource) comments(ctx context.Context, postID string) ([]redditComment, error) {
	endpoint := fmt.Sprintf("%s/comments/%s.json?limit=%d&sort=top", r.cfg.BaseURL, url.PathEscape(postID), r.cfg.CommentsPerPost)
	var listings []redditListing
	if err := r.client.getJSON(ctx, endpoint, &listings); err != nil {
		return nil, fmt.Errorf("reddit comments %s: %w", postID, err)
	}
	if len(listings) < 2 {
		return nil, nil
	}
	var out []redditComment
	flattenComments(listings[1], &out, r.cfg.CommentsPerPost)
	return out, nil
}

// flattenComments walks the reply tree depth first, skipping "load more" stubs
func flattenComments(listing redditListing, out *[]redditComment, max int) {
	for _, child := range listing.Data.Children {
		if len(*out) >= max {
			return
		}
		if child.Kind != "t1" {
			continue
		}
		var c redditComment
		if err := json.Unmarshal(child.Data, &c); err != nil {
			continue
		}
		*out = append(*out, c)
		if len(c.Replies) > 0 && c.Replies[0] == '{' {
			var replies redditListing
			if err := json.Unmarshal(c.Replies, &replies); err == nil {
				flattenComments(replies, out, max)
			}
		}
	}
}
