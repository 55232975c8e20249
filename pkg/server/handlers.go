package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sternrassler/measurement-ingest/pkg/logging"
	"github.com/Sternrassler/measurement-ingest/pkg/measurement"
	"github.com/Sternrassler/measurement-ingest/pkg/pagination"
)

type pageParams struct {
	total    int
	page     int
	size     int
	deviceID string
}

// parseWindowParams reads the parameters shared by the page and cursor
// endpoints. page is left at zero.
func parseWindowParams(r *http.Request) (pageParams, error) {
	q := r.URL.Query()

	total, err := pagination.IntParam(q, "total", pagination.TotalBounds)
	if err != nil {
		return pageParams{}, err
	}
	size, err := pagination.IntParam(q, "size", pagination.SizeBounds)
	if err != nil {
		return pageParams{}, err
	}

	return pageParams{
		total:    total,
		size:     size,
		deviceID: q.Get("device_id"),
	}, nil
}

func parsePageParams(r *http.Request) (pageParams, error) {
	p, err := parseWindowParams(r)
	if err != nil {
		return pageParams{}, err
	}

	p.page, err = pagination.IntParam(r.URL.Query(), "page", pagination.PageBounds)
	if err != nil {
		return pageParams{}, err
	}
	return p, nil
}

func (s *Server) generate(count int, deviceID string) []measurement.Measurement {
	items := s.generator.Generate(count, deviceID)
	generatedTotal.Add(float64(count))
	return items
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Device Measurements API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleList serves the deprecated unpaginated listing.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count, err := pagination.IntParam(q, "count", pagination.CountBounds)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	w.Header().Set("Deprecation", "true")
	w.Header().Set("Link", `</measurements/page>; rel="successor-version"`)

	items := s.generate(count, q.Get("device_id"))
	writeCacheable(w, r, pagination.Unpaginated(items, count))
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	p, err := parsePageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	items := s.generate(p.total, p.deviceID)
	writeCacheable(w, r, pagination.Paginate(items, p.page, p.size))
}

func (s *Server) handlePageWithLinks(w http.ResponseWriter, r *http.Request) {
	p, err := parsePageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	items := s.generate(p.total, p.deviceID)
	page := pagination.Paginate(items, p.page, p.size)
	writeCacheable(w, r, pagination.WithLinks(page, r.URL))
}

func (s *Server) handleCursor(w http.ResponseWriter, r *http.Request) {
	p, err := parseWindowParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var after *string
	if v := r.URL.Query().Get("after"); v != "" {
		after = &v
	}

	items := s.generate(p.total, p.deviceID)
	cp, err := pagination.PaginateCursor(items, after, p.size, s.cursors)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			logger := logging.Ctx(r.Context(), s.logger)
			logger.Debug().Err(err).Msg("Rejected cursor")
			writeError(w, http.StatusBadRequest, ErrCodeInvalidCursor, "invalid cursor")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}

	writeCacheable(w, r, cp)
}

// handleUnreliable is the page endpoint with injected 500s.
func (s *Server) handleUnreliable(w http.ResponseWriter, r *http.Request) {
	if s.injector.Fail() {
		injectedFailuresTotal.Inc()
		logger := logging.Ctx(r.Context(), s.logger)
		logger.Warn().Str("query", r.URL.RawQuery).Msg("Injecting simulated server error")
		writeError(w, http.StatusInternalServerError, ErrCodeInternal,
			"Internal Server Error: contact support for more information.")
		return
	}

	s.handlePage(w, r)
}

// writeCacheable writes v as JSON with a strong ETag and answers a matching
// If-None-Match with 304.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to encode response")
		return
	}

	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`
	w.Header().Set("ETag", etag)

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
