// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
)

// ExportHandler handles CSV download requests.
type ExportHandler struct {
	deps Dependencies
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps Dependencies) *ExportHandler {
	return &ExportHandler{deps: deps}
}

// HandleExportCSV handles GET /export/{code}?start=YYYY&end=YYYY
// requests, streaming the series as a year,value CSV. Years with no
// observation keep their row with an empty value cell.
func (h *ExportHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	code, ok := pathParam(r.URL.Path, "/export/")
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

	filename := fmt.Sprintf("gini_%s_%d_%d.csv", series.CountryCode, startYear, endYear)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"year", "value"})
	for _, p := range series.Chronological() {
		value := ""
		if p.HasValue() {
			value = strconv.FormatFloat(*p.Value, 'f', -1, 64)
		}
		_ = cw.Write([]string{strconv.Itoa(p.Year), value})
	}
	cw.Flush()
}
