package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/measurement-ingest/pkg/logging"
)

var (
	// ErrCacheMiss means no usable page is stored under the key. Get also
	// wraps it around ErrInvalidEntry when it evicts a corrupt page.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry marks a stored page that cannot be decoded or an
	// entry without an ETag, which could never be revalidated.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager keeps API page bodies and their ETags in Redis.
type Manager struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewManager panics on a nil client; a disabled cache is a nil *Manager
// at the call site, not a Manager without Redis.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis:  redisClient,
		logger: logging.NewLogger("cache"),
	}
}

// Get returns the stored page for key. Expired and undecodable pages are
// evicted and reported as ErrCacheMiss so the caller refetches them.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	endpoint := key.endpointLabel()

	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		CacheMisses.WithLabelValues(endpoint).Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		m.logger.Warn().Err(err).Str("key", key.String()).Msg("Evicting undecodable page")
		m.evict(ctx, key)
		CacheMisses.WithLabelValues(endpoint).Inc()
		return nil, fmt.Errorf("%w: %w: %v", ErrCacheMiss, ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		m.evict(ctx, key)
		CacheMisses.WithLabelValues(endpoint).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(endpoint).Inc()
	m.logger.Debug().Str("key", key.String()).Str("etag", entry.ETag).Msg("Page cache hit")
	return &entry, nil
}

// Set stores entry until it expires. An entry already past its expiry is
// dropped without touching Redis.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	if entry.ETag == "" {
		return fmt.Errorf("%w: %s has no etag", ErrInvalidEntry, key)
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("encode page %s: %w", key, err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	m.logger.Debug().Str("key", key.String()).Dur("ttl", ttl).Int("bytes", len(entry.Data)).Msg("Page cached")
	return nil
}

// Delete removes the page stored under key.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (m *Manager) evict(ctx context.Context, key CacheKey) {
	if err := m.Delete(ctx, key); err != nil {
		m.logger.Warn().Err(err).Msg("Eviction failed")
	}
}
