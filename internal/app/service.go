// Package service provides the pipeline facade that composes the
// cache store, pagination aggregator and parser behind the two
// operations the HTTP API and CLI depend on.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/giniscope/internal/adapters/cache"
	"github.com/okian/giniscope/internal/adapters/worldbank"
	"github.com/okian/giniscope/internal/domain/model"
	"github.com/okian/giniscope/pkg/logger"
	"github.com/okian/giniscope/pkg/metrics"
)

// Year bounds accepted by GetSeries.
const (
	minYear = 1900
	maxYear = 2100
)

const countriesKey = "countries"

// Fetcher is the upstream boundary the facade composes. Production
// wires *worldbank.Client; tests substitute a stub.
type Fetcher interface {
	Countries(ctx context.Context) ([]model.Country, int, bool, error)
	Series(ctx context.Context, countryCode string, startYear, endYear int) (*model.Series, error)
}

// Service implements the pipeline facade. Shared mutable state is
// confined to the cache store; concurrent callers for the same key
// coalesce into a single upstream fetch via the singleflight group.
type Service struct {
	mu sync.RWMutex

	store   cache.Store
	fetcher Fetcher
	group   singleflight.Group

	ttl           time.Duration
	skipWarnRatio float64

	started bool
	log     logger.Logger

	// Counters surfaced by GetStats.
	countryRequests atomic.Int64
	seriesRequests  atomic.Int64
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects the cache store. Defaults to an in-memory store
// built with the configured TTL.
func WithStore(store cache.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFetcher injects the upstream fetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithTTL sets the cache TTL used when the default store is built.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSkipWarnRatio sets the skipped-record fraction above which a
// result is reported as degraded.
func WithSkipWarnRatio(ratio float64) Option {
	return func(s *Service) {
		if ratio >= 0 && ratio <= 1 {
			s.skipWarnRatio = ratio
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		ttl:           time.Hour,
		skipWarnRatio: 0.5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.log == nil {
		s.log = logger.Get()
	}
	if s.store == nil {
		s.store = cache.NewMemory(cache.WithTTL(s.ttl))
	}
	if s.fetcher == nil {
		s.fetcher = worldbank.New(worldbank.WithLogger(s.log))
	}
	s.started = true
	s.log.Info(ctx, "pipeline service started",
		logger.String("cache_ttl", s.ttl.String()),
		logger.Float64("skip_warn_ratio", s.skipWarnRatio),
	)
	return nil
}

// Stop releases resources held by the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	s.started = false
	s.log.Info(context.Background(), "pipeline service stopped")
}

// ListCountries returns the country list ordered by name. Results are
// cached under a fixed key; concurrent cold-cache callers share one
// upstream fetch.
func (s *Service) ListCountries(ctx context.Context) ([]model.Country, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	s.countryRequests.Add(1)

	payload, err := s.fetchOnce(ctx, countriesKey, func(ctx context.Context) ([]byte, error) {
		countries, skipped, partial, err := s.fetcher.Countries(ctx)
		if err != nil {
			return nil, err
		}
		s.reportQuality(ctx, countriesKey, skipped, len(countries), partial)
		sort.Slice(countries, func(i, j int) bool { return countries[i].Name < countries[j].Name })
		return json.Marshal(countries)
	})
	if err != nil {
		return nil, err
	}

	var countries []model.Country
	if err := json.Unmarshal(payload, &countries); err != nil {
		return nil, fmt.Errorf("decoding cached countries: %w", err)
	}
	return countries, nil
}

// GetSeries returns the indicator series for a country over an
// inclusive year range. An empty point collection after a successful
// fetch is a valid result, distinct from a fetch failure.
func (s *Service) GetSeries(ctx context.Context, countryCode string, startYear, endYear int) (model.Series, error) {
	if err := s.ready(); err != nil {
		return model.Series{}, err
	}
	if err := validateRange(startYear, endYear); err != nil {
		return model.Series{}, err
	}
	s.seriesRequests.Add(1)

	key := seriesKey(countryCode, startYear, endYear)
	payload, err := s.fetchOnce(ctx, key, func(ctx context.Context) ([]byte, error) {
		series, err := s.fetcher.Series(ctx, countryCode, startYear, endYear)
		if err != nil {
			return nil, err
		}
		s.reportQuality(ctx, key, series.Skipped, series.Len(), series.Partial)
		return json.Marshal(series)
	})
	if err != nil {
		return model.Series{}, err
	}

	var series model.Series
	if err := json.Unmarshal(payload, &series); err != nil {
		return model.Series{}, fmt.Errorf("decoding cached series: %w", err)
	}
	return series, nil
}

// Invalidate drops the cached entry for a series query.
func (s *Service) Invalidate(ctx context.Context, countryCode string, startYear, endYear int) {
	if s.ready() != nil {
		return
	}
	s.store.Invalidate(ctx, seriesKey(countryCode, startYear, endYear))
}

// fetchOnce is the cache-or-fetch path shared by both operations.
// The singleflight group is keyed by the cache fingerprint and
// registered at first miss, so N near-simultaneous cold-cache callers
// trigger exactly one upstream fetch sequence and all observe the
// same payload or the same error. Each caller unmarshals the payload
// into its own value, so cached data is never mutated in place.
func (s *Service) fetchOnce(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if payload, ok := s.store.Get(ctx, key); ok {
		return payload, nil
	}

	result, err, shared := s.group.Do(key, func() (interface{}, error) {
		// A waiter queued behind the first miss may arrive after the
		// flight completed and the payload landed in the store.
		if payload, ok := s.store.Get(ctx, key); ok {
			return payload, nil
		}
		payload, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.store.Put(ctx, key, payload)
		return payload, nil
	})
	if shared {
		metrics.RecordCoalescedWaiter()
	}
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// reportQuality logs and counts degraded results: a skipped-record
// ratio above the threshold, or a partial pagination run.
func (s *Service) reportQuality(ctx context.Context, key string, skipped, kept int, partial bool) {
	metrics.RecordRecordsSkipped(skipped)
	total := skipped + kept
	if total > 0 && float64(skipped)/float64(total) > s.skipWarnRatio {
		metrics.RecordDegradedResult()
		s.log.Warn(ctx, "upstream data degraded by skipped records",
			logger.String("key", key),
			logger.Int("skipped", skipped),
			logger.Int("kept", kept),
		)
	}
	if partial {
		s.log.Warn(ctx, "result assembled from partial pagination", logger.String("key", key))
	}
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"cache_ttl":        s.ttl.String(),
		"skip_warn_ratio":  s.skipWarnRatio,
		"country_requests": s.countryRequests.Load(),
		"series_requests":  s.seriesRequests.Load(),
	}
	if mem, ok := s.store.(*cache.Memory); ok {
		stats["cache_entries"] = mem.Len()
	}
	return stats
}

func validateRange(startYear, endYear int) error {
	if startYear > endYear {
		return fmt.Errorf("%w: start %d after end %d", ErrInvalidRange, startYear, endYear)
	}
	if startYear < minYear || endYear > maxYear {
		return fmt.Errorf("%w: years must be within [%d, %d]", ErrInvalidRange, minYear, maxYear)
	}
	return nil
}

func seriesKey(countryCode string, startYear, endYear int) string {
	return cache.Fingerprint("series/"+strings.ToUpper(countryCode), map[string]string{
		"start": strconv.Itoa(startYear),
		"end":   strconv.Itoa(endYear),
	})
}
