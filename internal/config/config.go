// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields flat and tagged for koanf.
// - Provide New() to build a Config with defaults; Load() layers file
//   and environment on top.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// BaseURL points at the World Bank API root.
	BaseURL string `koanf:"base_url"`

	// Indicator selects the indicator code fetched for series queries.
	Indicator string `koanf:"indicator"`

	// RequestTimeoutSec bounds each individual upstream HTTP call.
	RequestTimeoutSec int `koanf:"request_timeout_sec"`

	// MaxRetries bounds retry attempts per page request.
	MaxRetries int `koanf:"max_retries"`

	// RetryBaseDelayMS seeds the exponential backoff schedule.
	RetryBaseDelayMS int `koanf:"retry_base_delay_ms"`

	// RetryMaxDelayMS caps a single backoff wait.
	RetryMaxDelayMS int `koanf:"retry_max_delay_ms"`

	// PerPage sets the page size requested from the upstream API.
	PerPage int `koanf:"per_page"`

	// CacheTTLSec controls how long fetched payloads stay fresh.
	CacheTTLSec int `koanf:"cache_ttl_sec"`

	// CachePath, when set, stores cached payloads in a SQLite file so
	// they survive restarts. Empty selects the in-memory store.
	CachePath string `koanf:"cache_path"`

	// SkipWarnRatio is the skipped-record fraction above which a
	// result is logged as degraded.
	SkipWarnRatio float64 `koanf:"skip_warn_ratio"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		BaseURL:           "https://api.worldbank.org/v2",
		Indicator:         "SI.POV.GINI",
		RequestTimeoutSec: 30,
		MaxRetries:        3,
		RetryBaseDelayMS:  1000,
		RetryMaxDelayMS:   30_000,
		PerPage:           1000,
		CacheTTLSec:       3600,
		CachePath:         "",
		SkipWarnRatio:     0.5,
	}
}
