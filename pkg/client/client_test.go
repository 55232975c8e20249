package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/measurement-ingest/internal/testutil"
	"github.com/Sternrassler/measurement-ingest/pkg/config"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client and skips when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig(baseURL)
	cfg.Endpoint = "/measurements/page"
	cfg.Retry = RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
	cfg.Jitter = NoJitter
	return cfg
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:     "relative base url",
			mutate:   func(c *Config) { c.BaseURL = "localhost:8000" },
			errorMsg: "base url must be absolute",
		},
		{
			name:     "empty user agent",
			mutate:   func(c *Config) { c.UserAgent = "" },
			errorMsg: "user-agent is required",
		},
		{
			name:     "endpoint without slash",
			mutate:   func(c *Config) { c.Endpoint = "measurements/page" },
			errorMsg: "endpoints must start with '/'",
		},
		{
			name:     "zero timeout",
			mutate:   func(c *Config) { c.Timeout = 0 },
			errorMsg: "timeout must be > 0",
		},
		{
			name:     "invalid retry policy",
			mutate:   func(c *Config) { c.Retry.MaxAttempts = 0 },
			errorMsg: "retry policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("http://localhost:8000")
			tt.mutate(&cfg)

			client, err := New(cfg)
			if tt.errorMsg == "" {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if client == nil {
					t.Error("Client is nil")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error = %v, want containing %q", err, tt.errorMsg)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg, err := FromConfig(config.IngestConfig{
		BaseURL:        "http://api:8000",
		Endpoint:       "/measurements/page",
		UserAgent:      "test/1.0",
		RequestTimeout: 3 * time.Second,
		MaxAttempts:    7,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		RedisURL:       "redis://localhost:6379/2",
	})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	defer cfg.Redis.Close()

	if cfg.Retry.MaxAttempts != 7 || cfg.Retry.InitialBackoff != 100*time.Millisecond || cfg.Retry.MaxBackoff != time.Second {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.Timeout)
	}
	if cfg.Redis == nil || cfg.Redis.Options().DB != 2 {
		t.Error("Redis client not configured from URL")
	}
}

func TestFromConfig_BadRedisURL(t *testing.T) {
	_, err := FromConfig(config.IngestConfig{BaseURL: "http://api:8000", RedisURL: "mysql://nope"})
	if err == nil {
		t.Error("expected error for invalid redis url")
	}
}

func TestFetchPage(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newTestClient(t, testConfig(mock.URL()))

	page, err := c.FetchPage(context.Background(), PageRequest{Page: 3, Size: 10, Total: 25})
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if len(page.Items) != 5 || page.Page != 3 || page.Size != 10 || page.Total != 25 {
		t.Errorf("page = {items:%d page:%d size:%d total:%d}, want {5 3 10 25}",
			len(page.Items), page.Page, page.Size, page.Total)
	}

	want := mock.Expected(25, "")[20:]
	for i, m := range page.Items {
		if m.ID != want[i].ID {
			t.Errorf("item %d id = %s, want %s", i, m.ID, want[i].ID)
		}
	}

	if ua := mock.LastRequestHeader().Get("User-Agent"); ua != "measurement-ingest/0.1.0" {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestFetchPage_RetriesServerErrors(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Script(1, 500, 503, 502)

	c := newTestClient(t, testConfig(mock.URL()))

	page, err := c.FetchPage(context.Background(), PageRequest{Page: 1, Size: 10, Total: 20})
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(page.Items) != 10 {
		t.Errorf("items = %d, want 10", len(page.Items))
	}
	if got := mock.PageRequests(1); got != 4 {
		t.Errorf("page requests = %d, want 4", got)
	}
	if got := c.Attempts(); got != 4 {
		t.Errorf("Attempts() = %d, want 4", got)
	}
}

func TestFetchPage_RetryExhausted(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.FailPageAlways(2, http.StatusInternalServerError)

	c := newTestClient(t, testConfig(mock.URL()))

	_, err := c.FetchPage(context.Background(), PageRequest{Page: 2, Size: 10, Total: 20})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("FetchPage() error = %v, want ErrRetryExhausted", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorClass != ErrorClassServer {
		t.Errorf("error should carry the server failure, got %v", err)
	}
	if got := mock.PageRequests(2); got != 5 {
		t.Errorf("page requests = %d, want 5", got)
	}
}

func TestFetchPage_ClientErrorNotRetried(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Script(1, http.StatusNotFound)

	c := newTestClient(t, testConfig(mock.URL()))

	_, err := c.FetchPage(context.Background(), PageRequest{Page: 1, Size: 10, Total: 20})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("FetchPage() error = %v, want 404 APIError", err)
	}
	if apiErr.Message != "scripted failure for page 1" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if got := mock.PageRequests(1); got != 1 {
		t.Errorf("page requests = %d, want 1", got)
	}
}

func TestFetchPage_MalformedBody(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"items": [`))
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))

	_, err := c.FetchPage(context.Background(), PageRequest{Page: 1, Size: 10, Total: 10})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("FetchPage() error = %v, want ErrMalformedResponse", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestFetchPage_NetworkErrorRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := testConfig(url)
	cfg.Retry.MaxAttempts = 2
	c := newTestClient(t, cfg)

	_, err := c.FetchPage(context.Background(), PageRequest{Page: 1, Size: 10, Total: 10})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("FetchPage() error = %v, want ErrRetryExhausted", err)
	}
	if class, _ := Classify(err); class != ErrorClassNetwork {
		t.Errorf("class = %q, want network", class)
	}
	if c.Attempts() != 2 {
		t.Errorf("Attempts() = %d, want 2", c.Attempts())
	}
}

func TestFetchPage_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newTestClient(t, testConfig(mock.URL()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPage(ctx, PageRequest{Page: 1, Size: 10, Total: 10})
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("FetchPage() error = %v, want ErrContextCancelled", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("requests = %d, want 0", mock.RequestCount())
	}
}

func TestFetchCursor_Walk(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newTestClient(t, testConfig(mock.URL()))
	ctx := context.Background()

	seen := map[string]bool{}
	req := CursorRequest{Size: 7, Total: 30}
	for {
		page, err := c.FetchCursor(ctx, req)
		if err != nil {
			t.Fatalf("FetchCursor() error = %v", err)
		}
		for _, m := range page.Items {
			seen[m.ID] = true
		}
		if page.NextPage == nil {
			break
		}
		req.After = *page.NextPage
	}

	if len(seen) != 30 {
		t.Errorf("unique items = %d, want 30", len(seen))
	}
}

func TestFetchCursor_InvalidCursor(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newTestClient(t, testConfig(mock.URL()))

	_, err := c.FetchCursor(context.Background(), CursorRequest{Size: 5, Total: 10, After: "garbage"})
	class, retryable := Classify(err)
	if class != ErrorClassClient || retryable {
		t.Errorf("Classify(%v) = (%q, %v), want (client, false)", err, class, retryable)
	}
}

func TestFetchPage_CacheRevalidation(t *testing.T) {
	redisClient := setupTestRedis(t)
	mock := testutil.NewMockAPI()
	defer mock.Close()

	cfg := testConfig(mock.URL())
	cfg.Redis = redisClient
	c := newTestClient(t, cfg)
	ctx := context.Background()
	req := PageRequest{Page: 1, Size: 10, Total: 20}

	first, err := c.FetchPage(ctx, req)
	if err != nil {
		t.Fatalf("first FetchPage() error = %v", err)
	}
	if mock.ConditionalCount() != 0 {
		t.Errorf("first request should not be conditional")
	}

	second, err := c.FetchPage(ctx, req)
	if err != nil {
		t.Fatalf("second FetchPage() error = %v", err)
	}
	if mock.ConditionalCount() != 1 {
		t.Errorf("conditional requests = %d, want 1", mock.ConditionalCount())
	}
	if len(second.Items) != len(first.Items) || second.Items[0].ID != first.Items[0].ID {
		t.Error("cached page differs from the original")
	}
}
