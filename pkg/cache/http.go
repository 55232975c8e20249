package cache

import (
	"net/http"
)

// AddConditionalHeaders sets If-None-Match from the entry's ETag.
func AddConditionalHeaders(req *http.Request, entry *CacheEntry) {
	if entry == nil || req == nil || entry.ETag == "" {
		return
	}
	req.Header.Set("If-None-Match", entry.ETag)
}
