// Package jina is a minimal client for the Jina AI search endpoint.
package jina

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-research/internal/resilience"
)

const defaultSearchURL = "https://s.jina.ai"

// Client searches the web through Jina.
type Client interface {
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the body returned by the search endpoint.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult is one hit. Jina does not score results, so callers derive a
// score from Rank.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// Text returns the content, falling back to the description.
func (r SearchResult) Text() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Description
}

// RankScore converts a zero-based rank into a relevance score in (0, 1].
func RankScore(rank int) float64 {
	s := 1 - 0.1*float64(rank)
	if s < 0.1 {
		return 0.1
	}
	return s
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	site  string
	count int
}

// WithSite restricts results to one domain.
func WithSite(domain string) SearchOption {
	return func(o *searchOpts) { o.site = domain }
}

// WithCount caps the number of results returned.
func WithCount(n int) SearchOption {
	return func(o *searchOpts) { o.count = n }
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the search endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Jina search client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultSearchURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	reqURL := c.baseURL + "/" + url.PathEscape(query)
	params := url.Values{}
	if so.site != "" {
		params.Set("site", so.site)
	}
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create search request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: search request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "jina: read search response")
	}

	// 422 means no results for the query.
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return &SearchResponse{Code: resp.StatusCode}, nil
	}
	if err := resilience.CheckStatus("jina", resp.StatusCode, body); err != nil {
		return nil, err
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal search response")
	}
	if so.count > 0 && len(out.Data) > so.count {
		out.Data = out.Data[:so.count]
	}
	return &out, nil
}
