package nvd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/model"
	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
)

// publishedTimeFormats are the timestamp layouts the feed has been
// observed to emit
var publishedTimeFormats = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Client fetches vulnerability pages from the NVD REST API.
// Pure request/response; it keeps no state and performs no retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option is a functional option for Client configuration
type Option func(*Client)

// WithAPIKey sets the NVD API key, sent as the "apiKey" request header.
// Unauthenticated access works but is rate limited far more aggressively.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new feed client for the given base URL
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, goerr.New("feed base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, goerr.Wrap(err, "invalid feed base URL", goerr.V("base_url", baseURL))
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// FetchPage fetches one page of vulnerabilities starting at offset.
// fetched is the raw number of feed entries in the page, counting entries
// dropped for carrying no CVE id; callers advance their offset by it. A
// page with fetched == 0 terminates pagination.
func (c *Client) FetchPage(ctx context.Context, offset, pageSize int) (vulns []*model.Vulnerability, fetched int, err error) {
	if offset < 0 {
		return nil, 0, goerr.New("offset must not be negative", goerr.V("offset", offset))
	}
	if pageSize <= 0 {
		return nil, 0, goerr.New("page size must be positive", goerr.V("page_size", pageSize))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to build feed request")
	}

	q := req.URL.Query()
	q.Set("startIndex", strconv.Itoa(offset))
	q.Set("resultsPerPage", strconv.Itoa(pageSize))
	req.URL.RawQuery = q.Encode()

	if c.apiKey != "" {
		req.Header.Set("apiKey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, goerr.Wrap(ErrFeedUnavailable, "feed request failed",
			goerr.V("offset", offset), goerr.V("cause", err.Error()))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, goerr.Wrap(ErrFeedUnavailable, "feed returned non-2xx status",
			goerr.V("offset", offset), goerr.V("status", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, goerr.Wrap(ErrFeedUnavailable, "failed to read feed response",
			goerr.V("offset", offset), goerr.V("cause", err.Error()))
	}

	var page cveResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, 0, goerr.Wrap(ErrFeedUnavailable, "failed to parse feed response",
			goerr.V("offset", offset), goerr.V("cause", err.Error()))
	}

	vulns = make([]*model.Vulnerability, 0, len(page.Vulnerabilities))
	for _, entry := range page.Vulnerabilities {
		if entry.CVE.ID == "" {
			continue
		}
		vulns = append(vulns, &model.Vulnerability{
			ID:          types.VulnID(entry.CVE.ID),
			Description: entry.CVE.description(),
			Published:   parsePublished(entry.CVE.Published),
		})
	}

	return vulns, len(page.Vulnerabilities), nil
}

func parsePublished(s string) time.Time {
	for _, layout := range publishedTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
