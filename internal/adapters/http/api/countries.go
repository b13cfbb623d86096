// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
)

// CountriesHandler handles country list requests.
type CountriesHandler struct {
	deps Dependencies
}

// NewCountriesHandler creates a new countries handler.
func NewCountriesHandler(deps Dependencies) *CountriesHandler {
	return &CountriesHandler{deps: deps}
}

// HandleGetCountries handles GET /countries requests.
func (h *CountriesHandler) HandleGetCountries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	countries, err := h.deps.ListCountries(r.Context())
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countries)
}
