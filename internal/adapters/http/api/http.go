// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/giniscope/internal/adapters/worldbank"
	service "github.com/okian/giniscope/internal/app"
	"github.com/okian/giniscope/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle
// keeps the handler layer loosely coupled to the pipeline facade.
type Dependencies interface {
	// ListCountries returns the country list ordered by name.
	ListCountries(ctx context.Context) ([]model.Country, error)

	// GetSeries returns the indicator series for one country over an
	// inclusive year range.
	GetSeries(ctx context.Context, countryCode string, startYear, endYear int) (model.Series, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	countriesHandler *CountriesHandler
	seriesHandler    *SeriesHandler
	exportHandler    *ExportHandler
	statsHandler     *StatsHandler
	healthHandler    *HealthHandler
	dashboardHandler *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		countriesHandler: NewCountriesHandler(deps),
		seriesHandler:    NewSeriesHandler(deps),
		exportHandler:    NewExportHandler(deps),
		statsHandler:     NewStatsHandler(statsProvider),
		healthHandler:    NewHealthHandler(),
		dashboardHandler: newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", Middleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", Middleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/countries", Middleware(s.countriesHandler.HandleGetCountries, "countries"))
	mux.HandleFunc("/series/", Middleware(s.seriesHandler.HandleGetSeries, "series"))
	mux.HandleFunc("/export/", Middleware(s.exportHandler.HandleExportCSV, "export"))
}

// seriesResponse is the wire shape of GET /series/{code}. Points are
// chronological ascending; a null value means the country reported no
// estimate that year.
type seriesResponse struct {
	CountryCode string        `json:"country_code"`
	Points      []model.Point `json:"points"`
	Skipped     int           `json:"skipped"`
	Partial     bool          `json:"partial"`
	Summary     model.Summary `json:"summary"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFetchError translates pipeline failures onto the HTTP
// boundary: a bad range is the caller's fault, everything else is an
// upstream problem worth retrying. "No data" never reaches this path;
// it is a successful empty result.
func writeFetchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err)
	case errors.Is(err, worldbank.ErrTimeout),
		errors.Is(err, worldbank.ErrNetwork),
		errors.Is(err, worldbank.ErrDecode):
		writeError(w, http.StatusBadGateway, "upstream_unavailable", err)
	default:
		var se *worldbank.StatusError
		if errors.As(err, &se) {
			writeError(w, http.StatusBadGateway, "upstream_error", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
