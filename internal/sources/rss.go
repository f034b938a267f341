package sources

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/steveyegge/gripes/internal/types"
)

// DefaultRSSTemplate searches Reddit through its RSS interface; %s is the escaped query
const DefaultRSSTemplate = "https://www.reddit.com/search.rss?q=%s&sort=relevance"

// RSSSource reads an RSS or Atom feed. The URL may contain one %s for the query.
type RSSSource struct {
	urlTemplate string
	parser      *gofeed.Parser
	policy      *bluemonday.Policy
	limiter     *rate.Limiter
}

var _ Source = (*RSSSource)(nil)

// NewRSSSource creates a feed connector (empty template = Reddit search RSS)
func NewRSSSource(urlTemplate string) *RSSSource {
	if urlTemplate == "" {
		urlTemplate = DefaultRSSTemplate
	}
	parser := gofeed.NewParser()
	parser.UserAgent = UserAgent
	return &RSSSource{
		urlTemplate: urlTemplate,
		parser:      parser,
		policy:      bluemonday.StrictPolicy(),
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Name returns types.SourceRSS
func (s *RSSSource) Name() types.Source { return types.SourceRSS }

// Fetch parses the feed and returns up to limit entries
func (s *RSSSource) Fetch(ctx context.Context, query string, limit int) ([]types.RawItem, error) {
	feedURL := s.urlTemplate
	if strings.Contains(feedURL, "%s") {
		feedURL = fmt.Sprintf(feedURL, url.QueryEscape(query))
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", redact(feedURL), err)
	}

	now := time.Now().UTC()
	var items []types.RawItem
	for _, entry := range feed.Items {
		if limit > 0 && len(items) >= limit {
			break
		}
		published := now
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
		}

		body := entry.Content
		if body == "" {
			body = entry.Description
		}
		text := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(body)))
		title := html.UnescapeString(entry.Title)
		if text == "" {
			text = title
		} else if title != "" {
			text = title + "\n\n" + text
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}
		if it, ok := newItem(types.SourceRSS, title, text, entry.Link, author, published); ok {
			items = append(items, it)
		}
	}
	return items, nil
}
