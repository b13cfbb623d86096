package worldbank

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/okian/giniscope/internal/domain/model"
)

// Year bounds accepted for indicator observations.
const (
	minYear = 1900
	maxYear = 2100
)

// rawCountry mirrors the fields of a country record we care about.
// The coordinate and capital fields only distinguish real countries
// from aggregate regions; the API returns them as strings.
type rawCountry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CapitalCity string `json:"capitalCity"`
	Longitude   string `json:"longitude"`
	Latitude    string `json:"latitude"`
	Region      struct {
		Value string `json:"value"`
	} `json:"region"`
}

// rawObservation mirrors one indicator record. Value stays raw so a
// JSON null (the API's explicit "no data" marker) remains
// distinguishable from a malformed field.
type rawObservation struct {
	Date  string          `json:"date"`
	Value json.RawMessage `json:"value"`
}

// parseCountries validates raw country records independently: a
// record missing its code or name is skipped and counted, never
// aborting the batch. Aggregate groupings (no capital city or
// coordinates) are filtered out silently; they are well-formed, just
// not countries.
func parseCountries(rows []rawRow) ([]model.Country, int) {
	countries := make([]model.Country, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		var rc rawCountry
		if err := json.Unmarshal(row, &rc); err != nil {
			skipped++
			continue
		}
		if rc.CapitalCity == "" || rc.Longitude == "" || rc.Latitude == "" {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(rc.ID))
		name := strings.TrimSpace(rc.Name)
		if !validCountryCode(code) || name == "" {
			skipped++
			continue
		}
		countries = append(countries, model.Country{
			Code:   code,
			Name:   name,
			Region: strings.TrimSpace(rc.Region.Value),
		})
	}
	return countries, skipped
}

// parseSeries validates raw observations into a Series. A null value
// is preserved as a point with an absent value; a year outside
// [1900, 2100], a non-integer year, or a non-numeric non-null value
// skips the record. Duplicate years across pages resolve
// last-write-wins in page-arrival order via Series.Add.
func parseSeries(rows []rawRow, countryCode string) (*model.Series, int) {
	series := model.NewSeries(strings.ToUpper(strings.TrimSpace(countryCode)))
	skipped := 0
	for _, row := range rows {
		var ro rawObservation
		if err := json.Unmarshal(row, &ro); err != nil {
			skipped++
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(ro.Date))
		if err != nil || year < minYear || year > maxYear {
			skipped++
			continue
		}
		value, ok := parseValue(ro.Value)
		if !ok {
			skipped++
			continue
		}
		series.Add(model.Point{Year: year, Value: value})
	}
	series.Skipped = skipped
	return series, skipped
}

// parseValue decodes an observation value. Returns (nil, true) for an
// explicit null, (ptr, true) for a finite number or numeric string,
// and (nil, false) for anything else.
func parseValue(raw json.RawMessage) (*float64, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, true
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if perr != nil {
			return nil, false
		}
		num = parsed
	}
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return nil, false
	}
	return &num, true
}

// validCountryCode accepts ISO alpha-3 codes.
func validCountryCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
