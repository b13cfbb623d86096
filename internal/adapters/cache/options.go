package cache

import "time"

// MemoryOption applies a configuration option to the Memory store.
type MemoryOption func(*Memory)

// WithTTL sets the entry lifetime. Entries older than ttl read as a
// miss.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock injects the time source. Tests use it to step entries
// across the TTL boundary without sleeping.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// SQLiteOption applies a configuration option to the SQLite store.
type SQLiteOption func(*SQLite)

// WithSQLiteTTL sets the entry lifetime for the SQLite store.
func WithSQLiteTTL(ttl time.Duration) SQLiteOption {
	return func(s *SQLite) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSQLiteClock injects the time source for the SQLite store.
func WithSQLiteClock(now func() time.Time) SQLiteOption {
	return func(s *SQLite) {
		if now != nil {
			s.now = now
		}
	}
}
