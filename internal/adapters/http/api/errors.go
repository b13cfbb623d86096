package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrMissingCountry = errors.New("missing country code")
	ErrBadYear        = errors.New("start and end must be integer years")
)
