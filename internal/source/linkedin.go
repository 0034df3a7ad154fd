// Package source crawls the job site's guest search endpoint: a narrow
// raw-page fetch boundary plus the paginated crawler that parses result
// cards into postings.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alwinjoseph/jobquest/internal/model"
)

const (
	// DefaultBaseURL is the guest search endpoint serving paginated HTML.
	DefaultBaseURL = "https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.93 Safari/537.36"
)

// PageFetcher retrieves one raw results page at the given offset. The HTML
// parsing rules live in the crawler so they can change without touching this
// boundary.
type PageFetcher interface {
	FetchPage(ctx context.Context, q model.Query, offset int) ([]byte, error)
}

// HTTPPageFetcher fetches result pages over HTTP with browser-like headers.
type HTTPPageFetcher struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewHTTPPageFetcher creates a fetcher for the given endpoint. An empty
// baseURL selects DefaultBaseURL.
func NewHTTPPageFetcher(baseURL string, client *http.Client) *HTTPPageFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPPageFetcher{
		baseURL:   baseURL,
		userAgent: defaultUserAgent,
		client:    client,
	}
}

// FetchPage requests the page starting at offset. Non-200 responses are
// returned as *model.HTTPError so callers can distinguish the source's
// pagination ceiling (400) from transient failures.
func (f *HTTPPageFetcher) FetchPage(ctx context.Context, q model.Query, offset int) ([]byte, error) {
	params := q.Filters.Params()
	params.Set("keywords", q.Keywords)
	params.Set("location", q.Location)
	params.Set("start", strconv.Itoa(offset))

	pageURL := f.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("page fetch at offset %d: %w", offset, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("page fetch at offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("page fetch at offset %d: unexpected status %d", offset, resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("page fetch at offset %d: %w", offset, err)
	}
	return body, nil
}

// stripTracking removes query parameters and fragments from a posting link.
// The source appends per-request tracking tokens that would defeat link
// equality.
func stripTracking(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
