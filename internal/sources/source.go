// Package sources fetches raw posts, comments and tweets about a product.
//
// Each connector is rate limited, honours context cancellation and assigns
// every item a stable ID, so fetching the same thread twice yields the same IDs
// and the deduplication engine can refuse the repeats.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/steveyegge/gripes/internal/types"
)

// Source is one place feedback can be fetched from
type Source interface {
	Name() types.Source
	// Fetch returns up to limit items matching query. Implementations may
	// return fewer items and a nil error when the provider has nothing more.
	Fetch(ctx context.Context, query string, limit int) ([]types.RawItem, error)
}

// UserAgent is sent with every request
const UserAgent = "gripes/1.0 (product feedback aggregator)"

// itemNamespace scopes item IDs derived by StableID
var itemNamespace = uuid.MustParse("4d3c2a1e-5f5b-4b7e-9a55-1f0f6c1d2e3a")

// StableID derives a deterministic item ID from where the text came from and what it says
func StableID(source types.Source, url, text string) string {
	return uuid.NewSHA1(itemNamespace, []byte(string(source)+"|"+url+"|"+text)).String()
}

// ErrAccessDenied means the credentials work but do not grant the needed API tier
var ErrAccessDenied = errors.New("access level insufficient")

// HTTPStatusError is returned for non-2xx responses
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// client is the HTTP plumbing shared by the JSON connectors
type client struct {
	http    *http.Client
	limiter *rate.Limiter
	headers map[string]string
}

func newClient(rps float64, timeout time.Duration, headers map[string]string) *client {
	if rps <= 0 {
		rps = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		headers: headers,
	}
}

// getJSON waits for the limiter, GETs url and decodes the body into out
func (c *client) getJSON(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &HTTPStatusError{URL: redact(url), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", redact(url), err)
	}
	return nil
}

// redact drops query strings, which may carry API keys, from URLs used in errors
func redact(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}

// newItem builds a RawItem with a stable ID; empty text yields ok=false
func newItem(source types.Source, title, text, url, author string, created time.Time) (types.RawItem, bool) {
	text = strings.TrimSpace(text)
	if text == "" || text == "[deleted]" || text == "[removed]" {
		return types.RawItem{}, false
	}
	return types.RawItem{
		ID:        StableID(source, url, text),
		Source:    source,
		Title:     strings.TrimSpace(title),
		Text:      text,
		URL:       url,
		Author:    author,
		CreatedAt: created,
	}, true
}
