package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies a cached API response.
type CacheKey struct {
	// Host is the upstream host[:port]
	Host string

	// Endpoint is the request path (e.g. "/measurements/page")
	Endpoint string

	// QueryParams are the request query parameters
	QueryParams url.Values
}

// String generates a deterministic cache key string.
//
// Example:
//
//	measurements:localhost:8000:measurements/page:page=2:size=10:total=100
func (k CacheKey) String() string {
	parts := []string{"measurements"}

	if k.Host != "" {
		parts = append(parts, k.Host)
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}

// endpointLabel is the metric label for the key's endpoint.
func (k CacheKey) endpointLabel() string {
	if k.Endpoint == "" {
		return "/"
	}
	return "/" + strings.Trim(k.Endpoint, "/")
}
