// Package client fetches measurement pages over HTTP with classified errors,
// retry with capped exponential backoff, and an optional Redis page cache.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/measurement-ingest/pkg/cache"
	"github.com/Sternrassler/measurement-ingest/pkg/config"
	"github.com/Sternrassler/measurement-ingest/pkg/logging"
	"github.com/Sternrassler/measurement-ingest/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for client operations.
var (
	ingestRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	ingestRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"endpoint"})

	ingestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// Client fetches pages from the measurements API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	cache      *cache.Manager
	retrier    *Retrier
	config     Config
	logger     zerolog.Logger
	attempts   atomic.Int64
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, e.g. "http://localhost:8000"
	BaseURL string

	// Endpoint serves page-based requests
	Endpoint string

	// CursorEndpoint serves cursor-based requests
	CursorEndpoint string

	UserAgent string

	// Timeout bounds a single attempt
	Timeout time.Duration

	Retry  RetryPolicy
	Jitter JitterFunc

	// Redis enables the page cache when set
	Redis    *redis.Client
	CacheTTL time.Duration
}

// DefaultConfig returns a configuration for the flaky page endpoint at baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		Endpoint:       "/measurements/very-reliable",
		CursorEndpoint: "/measurements/cursor",
		UserAgent:      "measurement-ingest/0.1.0",
		Timeout:        30 * time.Second,
		Retry:          DefaultRetryPolicy(),
		Jitter:         DefaultJitter,
		CacheTTL:       cache.DefaultTTL,
	}
}

// FromConfig builds a client Config from the ingest environment settings.
// A non-empty RedisURL opens a Redis client the caller must close.
func FromConfig(cfg config.IngestConfig) (Config, error) {
	c := DefaultConfig(cfg.BaseURL)
	c.Endpoint = cfg.Endpoint
	c.UserAgent = cfg.UserAgent
	c.Timeout = cfg.RequestTimeout
	c.Retry = RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     2.0,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return Config{}, fmt.Errorf("parse redis url: %w", err)
		}
		c.Redis = redis.NewClient(opts)
	}

	return c, nil
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute http(s) (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.CursorEndpoint == "" {
		cfg.CursorEndpoint = "/measurements/cursor"
	}
	if !strings.HasPrefix(cfg.Endpoint, "/") || !strings.HasPrefix(cfg.CursorEndpoint, "/") {
		return nil, fmt.Errorf("endpoints must start with '/' (got %q, %q)", cfg.Endpoint, cfg.CursorEndpoint)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}

	logger := logging.NewLogger("ingest-client")

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		retrier: NewRetrier(cfg.Retry, cfg.Jitter, logger),
		config:  cfg,
		logger:  logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// PageRequest selects one page of a page-based endpoint.
type PageRequest struct {
	Page     int
	Size     int
	Total    int
	DeviceID string
}

// Query encodes the request as URL query parameters.
func (r PageRequest) Query() url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(r.Page))
	q.Set("size", strconv.Itoa(r.Size))
	q.Set("total", strconv.Itoa(r.Total))
	if r.DeviceID != "" {
		q.Set("device_id", r.DeviceID)
	}
	return q
}

// CursorRequest selects one window of the cursor endpoint. An empty After
// requests the first window.
type CursorRequest struct {
	Size     int
	Total    int
	DeviceID string
	After    string
}

// Query encodes the request as URL query parameters.
func (r CursorRequest) Query() url.Values {
	q := url.Values{}
	q.Set("size", strconv.Itoa(r.Size))
	q.Set("total", strconv.Itoa(r.Total))
	if r.DeviceID != "" {
		q.Set("device_id", r.DeviceID)
	}
	if r.After != "" {
		q.Set("after", r.After)
	}
	return q
}

// FetchPage fetches one page, retrying transient failures.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*pagination.Page, error) {
	var page pagination.Page
	if err := c.get(ctx, c.config.Endpoint, req.Query(), &page); err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", req.Page, err)
	}
	return &page, nil
}

// FetchCursor fetches one cursor window, retrying transient failures.
func (c *Client) FetchCursor(ctx context.Context, req CursorRequest) (*pagination.CursorPage, error) {
	var page pagination.CursorPage
	if err := c.get(ctx, c.config.CursorEndpoint, req.Query(), &page); err != nil {
		return nil, fmt.Errorf("fetch cursor %q: %w", req.After, err)
	}
	return &page, nil
}

// Attempts returns the number of HTTP attempts issued so far.
func (c *Client) Attempts() int64 {
	return c.attempts.Load()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// get runs one logical request: the retry loop around attempt and decode.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, v any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + endpoint
	u.RawQuery = query.Encode()

	key := cache.CacheKey{
		Host:        c.baseURL.Host,
		Endpoint:    endpoint,
		QueryParams: query,
	}

	_, err := c.retrier.Do(ctx, func(ctx context.Context) error {
		body, err := c.attempt(ctx, &u, endpoint, key)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, v); err != nil {
			ingestErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			return &APIError{
				StatusCode: http.StatusOK,
				ErrorClass: ErrorClassDecode,
				Message:    "decode response body",
				Err:        fmt.Errorf("%w: %v", ErrMalformedResponse, err),
			}
		}
		return nil
	})
	return err
}

// attempt performs a single HTTP exchange and returns the response body.
func (c *Client) attempt(ctx context.Context, u *url.URL, endpoint string, key cache.CacheKey) ([]byte, error) {
	c.attempts.Add(1)

	startTime := time.Now()
	defer func() {
		ingestRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	var cached *cache.CacheEntry
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			cached = entry
			cache.AddConditionalHeaders(req, entry)
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		ingestRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		ingestErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "transport error", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ingestRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		ingestErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read response body", Err: err}
	}

	ingestRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		cache.NotModifiedResponses.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		return cached.Data, nil
	}

	if resp.StatusCode != http.StatusOK {
		errClass := classifyStatus(resp.StatusCode)
		ingestErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("API request error")
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    errorMessage(resp, body),
		}
	}

	if c.cache != nil {
		if etag := resp.Header.Get("ETag"); etag != "" {
			if err := c.cache.Set(ctx, key, cache.NewEntry(body, etag, c.config.CacheTTL)); err != nil {
				c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
			}
		}
	}

	return body, nil
}

// errorMessage extracts the message of a structured error body, falling
// back to the status line.
func errorMessage(resp *http.Response, body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return resp.Status
}
