// Package testutil provides a scripted measurements API for client and ingest tests.
package testutil

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/Sternrassler/measurement-ingest/pkg/measurement"
	"github.com/Sternrassler/measurement-ingest/pkg/pagination"
)

// Seed is the generator seed used by MockAPI.
const Seed = 42

// MockAPI serves generated measurements on the page and cursor routes.
// Failures are scripted per page number, so concurrent clients observe the
// same outcomes no matter in which order they request pages.
type MockAPI struct {
	server *httptest.Server
	gen    *measurement.Generator
	codec  *pagination.CursorCodec

	mu               sync.Mutex
	handlers         map[string]http.HandlerFunc
	scripts          map[int][]int
	delay            time.Duration
	requestCount     int
	conditionalCount int
	pageRequests     map[int]int
	lastHeader       http.Header
}

// NewMockAPI starts a mock API server. Call Close when done.
func NewMockAPI() *MockAPI {
	codec, err := pagination.NewCursorCodec([]byte("mock-api-secret"))
	if err != nil {
		panic(err)
	}

	mock := &MockAPI{
		gen:          measurement.NewGenerator(Seed),
		codec:        codec,
		handlers:     make(map[string]http.HandlerFunc),
		scripts:      make(map[int][]int),
		pageRequests: make(map[int]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/measurements/page", mock.handlePage)
	mux.HandleFunc("/measurements/very-reliable", mock.handlePage)
	mux.HandleFunc("/measurements/cursor", mock.handleCursor)

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" {
			mock.conditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		delay := mock.delay
		mock.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if exists {
			handler(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Expected returns what the API holds for total and deviceID.
func (m *MockAPI) Expected(total int, deviceID string) []measurement.Measurement {
	return m.gen.Generate(total, deviceID)
}

// SetHandler overrides the handler for a path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetDelay adds latency to every request.
func (m *MockAPI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Script queues statuses for a page number. Each request for that page
// consumes the next status; once the queue is empty the page is served.
// Status 200 in the script serves the page normally.
func (m *MockAPI) Script(page int, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[page] = append(m.scripts[page], statuses...)
}

// FailPageAlways makes every request for page fail with status.
func (m *MockAPI) FailPageAlways(page, status int) {
	statuses := make([]int, 1000)
	for i := range statuses {
		statuses[i] = status
	}
	m.Script(page, statuses...)
}

// RequestCount returns the number of requests served.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// ConditionalCount returns the number of requests carrying If-None-Match.
func (m *MockAPI) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditionalCount
}

// PageRequests returns how often page was requested.
func (m *MockAPI) PageRequests(page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pageRequests[page]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

func (m *MockAPI) nextStatus(page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageRequests[page]++
	queue := m.scripts[page]
	if len(queue) == 0 {
		return http.StatusOK
	}
	m.scripts[page] = queue[1:]
	return queue[0]
}

func (m *MockAPI) handlePage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := pagination.IntParam(q, "page", pagination.PageBounds)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	size, err := pagination.IntParam(q, "size", pagination.SizeBounds)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	total, err := pagination.IntParam(q, "total", pagination.TotalBounds)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	if status := m.nextStatus(page); status != http.StatusOK {
		writeStatus(w, status, fmt.Sprintf("scripted failure for page %d", page))
		return
	}

	items := m.gen.Generate(total, q.Get("device_id"))
	writeBody(w, r, pagination.Paginate(items, page, size))
}

func (m *MockAPI) handleCursor(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size, err := pagination.IntParam(q, "size", pagination.SizeBounds)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	total, err := pagination.IntParam(q, "total", pagination.TotalBounds)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	var after *string
	if q.Has("after") {
		v := q.Get("after")
		after = &v
	}

	items := m.gen.Generate(total, q.Get("device_id"))
	page, err := pagination.PaginateCursor(items, after, size, m.codec)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	writeBody(w, r, page)
}

func writeBody(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeStatus(w, http.StatusInternalServerError, err.Error())
		return
	}

	etag := fmt.Sprintf(`"%x"`, sha256.Sum256(body))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"code":    http.StatusText(status),
		"message": message,
	})
}
