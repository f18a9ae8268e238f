// Package client provides the repository search API client: one
// authenticated GET per result page, decoded into a pagination.Page.
package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/repo-search/pkg/cache"
	rserrors "github.com/Sternrassler/repo-search/pkg/errors"
	"github.com/Sternrassler/repo-search/pkg/logging"
	"github.com/Sternrassler/repo-search/pkg/pagination"
	"github.com/Sternrassler/repo-search/pkg/ratelimit"
)

// Prometheus metrics for search API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reposearch_requests_total",
		Help: "Total search API requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reposearch_request_duration_seconds",
		Help:    "Search API request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reposearch_errors_total",
		Help: "Total search API errors by kind",
	}, []string{"kind"})
)

// Defaults for the GitHub search API.
const (
	DefaultBaseURL    = "https://api.github.com"
	DefaultAPIVersion = "2022-11-28"
	DefaultUserAgent  = "repo-search/0.1.0"
	DefaultTimeout    = 30 * time.Second
	DefaultCacheTTL   = 10 * time.Minute

	// MediaType is sent in the Accept header.
	MediaType = "application/vnd.github+json"

	// SearchPath is the repository search endpoint.
	SearchPath = "/search/repositories"
)

// PageCache stores raw page bodies. *cache.Manager implements it.
type PageCache interface {
	Get(ctx context.Context, key cache.CacheKey) (*cache.CacheEntry, error)
	Set(ctx context.Context, key cache.CacheKey, entry *cache.CacheEntry) error
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API (scheme and host, optional path prefix)
	BaseURL string

	// Query is the search string sent as q (REQUIRED)
	Query string

	// Token is sent as "bearer <token>" (REQUIRED)
	Token string

	// User-Agent header (REQUIRED by the API)
	UserAgent string

	// APIVersion is sent as X-GitHub-Api-Version
	APIVersion string

	// Timeout per request
	Timeout time.Duration

	// Caching (optional, nil disables)
	Cache    PageCache
	CacheTTL time.Duration
}

// DefaultConfig returns a configuration for the public GitHub API.
func DefaultConfig(query, token string) Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Query:      query,
		Token:      token,
		UserAgent:  DefaultUserAgent,
		APIVersion: DefaultAPIVersion,
		Timeout:    DefaultTimeout,
		CacheTTL:   DefaultCacheTTL,
	}
}

// Client is the search API client.
// Search string and token are fixed for the client's lifetime.
type Client struct {
	httpClient  *http.Client
	searchURL   *url.URL
	cache       PageCache
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// New creates a new search client.
// Missing or invalid settings yield a CONFIGURATION error; no request is made.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Query) == "" {
		return nil, rserrors.Missing("query")
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Token == "" {
		return nil, rserrors.Missing("token")
	}
	if cfg.UserAgent == "" {
		return nil, rserrors.Missing("user-agent")
	}
	if cfg.APIVersion == "" {
		return nil, rserrors.Missing("api-version")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		e := rserrors.New(rserrors.KindConfiguration, "invalid base url %q", cfg.BaseURL)
		e.Field = "base-url"
		e.Cause = err
		return nil, e
	}

	logger := logging.NewLogger(logging.ComponentClient)

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		searchURL:   base.JoinPath(SearchPath),
		cache:       cfg.Cache,
		rateLimiter: ratelimit.NewTracker(logger),
		config:      cfg,
		logger:      logger,
	}, nil
}

// FetchPage fetches one page of search results. Page numbers are 1-based.
// Every returned error is an *errors.Error carrying the page number.
func (c *Client) FetchPage(ctx context.Context, page, perPage int) (pagination.Page[SearchResult], error) {
	key := c.cacheKey(page, perPage)

	if c.cache != nil {
		if result, ok := c.fromCache(ctx, key, page); ok {
			return result, nil
		}
	}

	req, err := c.newRequest(ctx, page, perPage)
	if err != nil {
		return pagination.Page[SearchResult]{}, c.fail(rserrors.Wrap(rserrors.KindTransport, err, "build request").WithPage(page))
	}

	c.logger.Debug().
		Int("page", page).
		Int("per_page", perPage).
		Msg("Executing search request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return pagination.Page[SearchResult]{}, c.fail(rserrors.Wrap(rserrors.KindTransport, err, "send request").WithPage(page))
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if err := c.rateLimiter.UpdateFromHeaders(resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read rate limit headers")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pagination.Page[SearchResult]{}, c.fail(rserrors.Wrap(rserrors.KindTransport, err, "read response body").WithPage(page))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pagination.Page[SearchResult]{}, c.fail(c.protocolError(resp, body).WithPage(page))
	}

	result, derr := decodePage(body)
	if derr != nil {
		return pagination.Page[SearchResult]{}, c.fail(derr.WithPage(page))
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, cache.NewEntry(body, c.config.CacheTTL)); err != nil {
			c.logger.Warn().Err(err).Int("page", page).Msg("Failed to cache page")
		}
	}

	c.logger.Debug().
		Int("page", page).
		Int("status", resp.StatusCode).
		Int("items", len(result.Items)).
		Int("total", result.TotalCount).
		Dur("duration", time.Since(start)).
		Msg("Search request complete")

	return result, nil
}

// fromCache decodes a fresh cached page. Cache failures fall back to the API.
func (c *Client) fromCache(ctx context.Context, key cache.CacheKey, page int) (pagination.Page[SearchResult], bool) {
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Int("page", page).Msg("Cache get error")
		}
		return pagination.Page[SearchResult]{}, false
	}

	result, derr := decodePage(entry.Data)
	if derr != nil {
		c.logger.Warn().Err(derr).Int("page", page).Msg("Discarding undecodable cache entry")
		return pagination.Page[SearchResult]{}, false
	}

	c.logger.Debug().
		Int("page", page).
		Dur("age", entry.Age()).
		Msg("Page served from cache")
	return result, true
}

// newRequest builds the GET request for one page with the required headers.
func (c *Client) newRequest(ctx context.Context, page, perPage int) (*http.Request, error) {
	u := *c.searchURL
	u.RawQuery = c.queryParams(page, perPage).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", MediaType)
	req.Header.Set("Authorization", "bearer "+c.config.Token)
	req.Header.Set("X-GitHub-Api-Version", c.config.APIVersion)
	req.Header.Set("User-Agent", c.config.UserAgent)

	return req, nil
}

func (c *Client) queryParams(page, perPage int) url.Values {
	return url.Values{
		"q":        []string{c.config.Query},
		"page":     []string{strconv.Itoa(page)},
		"per_page": []string{strconv.Itoa(perPage)},
	}
}

func (c *Client) cacheKey(page, perPage int) cache.CacheKey {
	return cache.CacheKey{
		Endpoint:    SearchPath,
		QueryParams: c.queryParams(page, perPage),
		Scope:       cache.Scope(c.config.Token),
	}
}

// fail records the error metric and log line shared by all failure paths.
func (c *Client) fail(err *rserrors.Error) error {
	errorsTotal.WithLabelValues(string(err.Kind)).Inc()

	c.logger.Warn().
		Str("error_kind", string(err.Kind)).
		Int("page", err.Page).
		Int("status", err.StatusCode).
		Err(err).
		Msg("Search request failed")

	return err
}

// RateLimit returns the rate limit state from the last response, or nil.
func (c *Client) RateLimit() *ratelimit.RateLimitState {
	return c.rateLimiter.State()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
