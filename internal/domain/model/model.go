// Package model contains domain models passed between layers.
package model

import "sort"

// Country identifies a single reporting country.
// Immutable once constructed by the parser.
type Country struct {
	Code   string `json:"code"`   // ISO alpha-3, unique
	Name   string `json:"name"`   // display name
	Region string `json:"region"` // World Bank region label, may be empty
}

// Point is one observation of the indicator for a single year.
// A nil Value means the upstream API explicitly reported no estimate
// for that year. It is a legitimate observation, distinct from a
// malformed record, and must never be coerced to zero.
type Point struct {
	Year  int      `json:"year"`
	Value *float64 `json:"value"` // nil encodes as JSON null
}

// HasValue reports whether the point carries an observation.
func (p Point) HasValue() bool {
	return p.Value != nil
}

// Series holds the indicator observations for exactly one country.
// Points keep page-arrival (insertion) order; the chronological view
// is computed on read. At most one point exists per year.
type Series struct {
	CountryCode string  `json:"country_code"`
	Points      []Point `json:"points"`
	// Skipped counts raw records rejected during parsing. Partial is
	// set when pagination aborted before all pages were consumed.
	// Both travel with the result so callers can decide whether the
	// data is degraded; neither is an error by itself.
	Skipped int  `json:"skipped"`
	Partial bool `json:"partial"`
}

// NewSeries creates an empty series for a country.
func NewSeries(countryCode string) *Series {
	return &Series{CountryCode: countryCode}
}

// Add inserts a point, deduplicating by year. Paginated responses may
// repeat a year across pages; the last write wins and keeps the
// original insertion position.
func (s *Series) Add(p Point) {
	for i := range s.Points {
		if s.Points[i].Year == p.Year {
			s.Points[i] = p
			return
		}
	}
	s.Points = append(s.Points, p)
}

// Len returns the number of points in the series.
func (s *Series) Len() int {
	return len(s.Points)
}

// Chronological returns a copy of the points sorted ascending by year.
// The stored points are not reordered.
func (s *Series) Chronological() []Point {
	out := make([]Point, len(s.Points))
	copy(out, s.Points)
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Latest returns the most recent point that carries a value, or false
// when the series has no observed values at all.
func (s *Series) Latest() (Point, bool) {
	var best Point
	found := false
	for _, p := range s.Points {
		if !p.HasValue() {
			continue
		}
		if !found || p.Year > best.Year {
			best = p
			found = true
		}
	}
	return best, found
}

// ValueForYear returns the observed value for a year, if any.
func (s *Series) ValueForYear(year int) (float64, bool) {
	for _, p := range s.Points {
		if p.Year == year && p.HasValue() {
			return *p.Value, true
		}
	}
	return 0, false
}

// Trend labels for Summary.
const (
	TrendIncreasing   = "increasing"
	TrendDecreasing   = "decreasing"
	TrendStable       = "stable"
	TrendInsufficient = "insufficient_data"
)

// Summary describes the observed (non-null) portion of a series.
type Summary struct {
	Count     int     `json:"count"`
	FirstYear int     `json:"first_year"`
	LastYear  int     `json:"last_year"`
	MinValue  float64 `json:"min_value"`
	MaxValue  float64 `json:"max_value"`
	MeanValue float64 `json:"mean_value"`
	Latest    float64 `json:"latest_value"`
	Trend     string  `json:"trend"`
}

// Summarize computes summary statistics over the observed values.
// Trend is the sign of a least-squares slope over (year, value),
// with a +-0.1 dead band treated as stable.
func (s *Series) Summarize() Summary {
	points := s.Chronological()
	var observed []Point
	for _, p := range points {
		if p.HasValue() {
			observed = append(observed, p)
		}
	}
	if len(observed) == 0 {
		return Summary{Trend: TrendInsufficient}
	}

	sum := Summary{
		Count:     len(observed),
		FirstYear: observed[0].Year,
		LastYear:  observed[len(observed)-1].Year,
		MinValue:  *observed[0].Value,
		MaxValue:  *observed[0].Value,
	}
	var total float64
	for _, p := range observed {
		v := *p.Value
		total += v
		if v < sum.MinValue {
			sum.MinValue = v
		}
		if v > sum.MaxValue {
			sum.MaxValue = v
		}
	}
	sum.MeanValue = total / float64(len(observed))
	if latest, ok := s.Latest(); ok {
		sum.Latest = *latest.Value
	}

	if len(observed) < 2 {
		sum.Trend = TrendInsufficient
		return sum
	}
	slope := linearSlope(observed)
	switch {
	case slope > 0.1:
		sum.Trend = TrendIncreasing
	case slope < -0.1:
		sum.Trend = TrendDecreasing
	default:
		sum.Trend = TrendStable
	}
	return sum
}

// linearSlope fits value = a + b*year by least squares and returns b.
func linearSlope(points []Point) float64 {
	n := float64(len(points))
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		x := float64(p.Year)
		y := *p.Value
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// Float64 returns a pointer to v. Convenience for building points.
func Float64(v float64) *float64 {
	return &v
}
