// Package cache stores measurement API responses in Redis so repeated
// ingestion runs can revalidate pages with If-None-Match instead of
// downloading them again.
//
// The API emits a strong ETag for every page and cursor response. The client
// keeps the body and ETag here; on the next fetch of the same page it sends
// the ETag and, on 304 Not Modified, serves the body from Redis.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Host:        "localhost:8000",
//		Endpoint:    "/measurements/page",
//		QueryParams: url.Values{"page": []string{"2"}, "size": []string{"10"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from API, then manager.Set(ctx, key, cache.NewEntry(body, etag, 0))
//	}
//
// # Cache Key Format
//
//	measurements:<host>:<endpoint>:<query1>=<val1>:<query2>=<val2>
//
// Query parameters are sorted, so equivalent requests share a key.
//
// # Metrics
//
//   - ingest_cache_hits_total{endpoint}
//   - ingest_cache_misses_total{endpoint}
//   - ingest_cache_errors_total{operation}
//   - ingest_304_responses_total
package cache
