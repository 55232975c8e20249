package cache

import (
	"net/http"
	"testing"
)

func TestAddConditionalHeaders(t *testing.T) {
	tests := []struct {
		name  string
		entry *CacheEntry
		want  string
	}{
		{"with etag", &CacheEntry{ETag: `"abc123"`}, `"abc123"`},
		{"empty etag", &CacheEntry{}, ""},
		{"nil entry", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "http://localhost/measurements/page", nil)
			AddConditionalHeaders(req, tt.entry)
			if got := req.Header.Get("If-None-Match"); got != tt.want {
				t.Errorf("If-None-Match = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddConditionalHeaders_NilRequest(t *testing.T) {
	AddConditionalHeaders(nil, &CacheEntry{ETag: `"x"`})
}
