package worldbank

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel kinds for upstream fetch failures. Callers distinguish
// "could not fetch" from "fetched, confirmed empty" with these; an
// empty result is never reported through an error.
var (
	// ErrNetwork covers DNS and connection failures.
	ErrNetwork = errors.New("worldbank: network failure")
	// ErrTimeout covers per-request timeouts.
	ErrTimeout = errors.New("worldbank: request timed out")
	// ErrDecode covers non-JSON bodies, truncated payloads and
	// malformed response envelopes.
	ErrDecode = errors.New("worldbank: malformed response")
)

// StatusError reports a non-2xx HTTP response from the upstream API.
type StatusError struct {
	Status     int
	RetryAfter time.Duration // from a Retry-After hint, zero if absent
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("worldbank: upstream returned HTTP %d", e.Status)
}

// Temporary reports whether the failure is worth retrying: server
// errors and rate limits are transient, other client errors are
// permanent.
func (e *StatusError) Temporary() bool {
	return e.Status >= 500 || e.Status == 429
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
