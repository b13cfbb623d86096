package service

import "errors"

// Sentinel kinds for pipeline errors.
var (
	// ErrInvalidRange reports a year range the facade refuses before
	// any network call is issued.
	ErrInvalidRange = errors.New("invalid year range")
	// ErrNotStarted reports use of the service before Start.
	ErrNotStarted = errors.New("service not started")
)
