// Package cache provides TTL-expiring payload stores keyed by query
// fingerprints. Payloads are opaque marshaled bytes: every reader
// unmarshals into a fresh value, so cached data is never shared
// mutable state.
package cache

import (
	"context"
	"sort"
	"strings"
)

// Store is the contract the pipeline facade caches through. A stale
// or missing entry reads as a miss; implementations replace entries
// wholesale on Put and never merge. Backing-store failures must
// degrade to miss/no-op behavior, never to an error that could mask
// the upstream API.
type Store interface {
	// Get returns the payload for key, or false on miss (including
	// expired entries, which are evicted lazily).
	Get(ctx context.Context, key string) ([]byte, bool)

	// Put stores payload under key, replacing any existing entry and
	// resetting its age.
	Put(ctx context.Context, key string, payload []byte)

	// Invalidate drops the entry for key if present.
	Invalidate(ctx context.Context, key string)
}

// Fingerprint derives a deterministic cache key from an endpoint
// identity and its query parameters. Parameters are sorted by name so
// equivalent queries always map to the same key.
func Fingerprint(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
