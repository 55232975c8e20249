package cache

import (
	"time"
)

// DefaultTTL applies when an entry is created without an explicit TTL.
// The API sends no Expires header; pages are revalidated by ETag instead.
const DefaultTTL = 5 * time.Minute

// CacheEntry is a cached API response body.
type CacheEntry struct {
	Data     []byte    `json:"data"`
	ETag     string    `json:"etag"`
	Expires  time.Time `json:"expires"`
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry creates an entry expiring after ttl (DefaultTTL when ttl <= 0).
func NewEntry(data []byte, etag string, ttl time.Duration) *CacheEntry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return &CacheEntry{
		Data:     data,
		ETag:     etag,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
