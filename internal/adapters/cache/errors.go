package cache

import "errors"

// Sentinel kinds for cache construction errors. Runtime read/write
// failures never surface as errors; they degrade to miss behavior.
var (
	ErrPathRequired = errors.New("cache: sqlite path is required")
)
