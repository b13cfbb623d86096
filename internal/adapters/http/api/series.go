// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Default year range when the query omits start/end.
const defaultStartYear = 1990

// SeriesHandler handles indicator series requests.
type SeriesHandler struct {
	deps Dependencies
}

// NewSeriesHandler creates a new series handler.
func NewSeriesHandler(deps Dependencies) *SeriesHandler {
	return &SeriesHandler{deps: deps}
}

// HandleGetSeries handles GET /series/{code}?start=YYYY&end=YYYY
// requests. An empty point collection is a valid 200 response: the
// country simply has no observations in the range.
func (h *SeriesHandler) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	code, ok := pathParam(r.URL.Path, "/series/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingCountry)
		return
	}
	startYear, endYear, err := yearRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	series, err := h.deps.GetSeries(r.Context(), code, startYear, endYear)
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seriesResponse{
		CountryCode: series.CountryCode,
		Points:      series.Chronological(),
		Skipped:     series.Skipped,
		Partial:     series.Partial,
		Summary:     series.Summarize(),
	})
}

// pathParam extracts the single path segment after prefix.
func pathParam(path, prefix string) (string, bool) {
	param := strings.TrimPrefix(path, prefix)
	if param == "" || strings.Contains(param, "/") {
		return "", false
	}
	return param, true
}

// yearRange reads start/end query parameters, defaulting to
// 1990..current year. Range semantics are validated by the facade.
func yearRange(r *http.Request) (int, int, error) {
	startYear := defaultStartYear
	endYear := time.Now().UTC().Year()

	if raw := r.URL.Query().Get("start"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, ErrBadYear
		}
		startYear = n
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, ErrBadYear
		}
		endYear = n
	}
	return startYear, endYear, nil
}
