// Package worldbank fetches and normalizes indicator data from the
// World Bank REST API. It owns the retry policy, pagination and
// per-record validation; caching happens a layer above.
package worldbank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/giniscope/internal/domain/model"
	"github.com/okian/giniscope/pkg/logger"
	"github.com/okian/giniscope/pkg/metrics"
)

const (
	defaultBaseURL    = "https://api.worldbank.org/v2"
	defaultIndicator  = "SI.POV.GINI"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
	defaultPerPage    = 1000
	defaultUserAgent  = "giniscope/0.1"

	countriesEndpoint = "country"
)

// HTTPClient matches the Do method of *http.Client so tests can
// inject stub transports.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues requests against the World Bank API.
type Client struct {
	baseURL    string
	indicator  string
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	perPage    int
	userAgent  string
	http       HTTPClient
	log        logger.Logger
}

// New constructs a Client with default configuration.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		indicator:  defaultIndicator,
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		perPage:    defaultPerPage,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.log == nil {
		c.log = logger.Get()
	}
	return c
}

// Indicator returns the indicator code this client fetches.
func (c *Client) Indicator() string {
	return c.indicator
}

// Countries fetches the full country list. Aggregate regions are
// filtered out; malformed records are skipped and counted. The partial
// flag is set when pagination aborted before all pages were consumed.
func (c *Client) Countries(ctx context.Context) ([]model.Country, int, bool, error) {
	rows, partial, err := c.fetchAll(ctx, countriesEndpoint, nil)
	if err != nil {
		return nil, 0, false, err
	}
	countries, skipped := parseCountries(rows)
	c.log.Debug(ctx, "fetched countries",
		logger.Int("count", len(countries)),
		logger.Int("skipped", skipped),
	)
	return countries, skipped, partial, nil
}

// Series fetches the indicator time series for one country. Year
// bounds are passed through as the API's date filter; the caller
// validates the range before any network call.
func (c *Client) Series(ctx context.Context, countryCode string, startYear, endYear int) (*model.Series, error) {
	endpoint := fmt.Sprintf("country/%s/indicator/%s",
		url.PathEscape(countryCode), url.PathEscape(c.indicator))
	params := url.Values{}
	params.Set("date", fmt.Sprintf("%d:%d", startYear, endYear))

	rows, partial, err := c.fetchAll(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	series, skipped := parseSeries(rows, countryCode)
	series.Partial = partial
	c.log.Debug(ctx, "fetched indicator series",
		logger.String("country", countryCode),
		logger.Int("points", series.Len()),
		logger.Int("skipped", skipped),
	)
	return series, nil
}

// get fetches a single page with a bounded retry state machine.
// Attempt schedule: network failures, timeouts and 5xx retry with
// exponential backoff (base doubled per attempt, capped); 429 retries
// honoring the Retry-After hint when present; any other 4xx is
// permanent and surfaces immediately.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, page int) (*pageMeta, []rawRow, error) {
	uri := c.buildURL(endpoint, params, page)

	var lastErr error
	attempts := c.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			metrics.RecordUpstreamRetry(endpoint)
			if err := sleepWithContext(ctx, c.retryDelay(attempt-1, lastErr)); err != nil {
				return nil, nil, err
			}
		}

		start := time.Now()
		body, err := c.doOnce(ctx, uri)
		metrics.ObserveUpstreamDuration(endpoint, time.Since(start))
		if err == nil {
			meta, rows, derr := decodeEnvelope(body)
			if derr != nil {
				// A broken body is not transient; surface it.
				return nil, nil, derr
			}
			return meta, rows, nil
		}

		lastErr = err
		if !retryable(err) {
			return nil, nil, err
		}
		c.log.Warn(ctx, "upstream request failed, retrying",
			logger.String("endpoint", endpoint),
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
	}
	return nil, nil, lastErr
}

// doOnce performs one HTTP round trip and classifies failures.
func (c *Client) doOnce(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest("error")
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	metrics.RecordUpstreamRequest(strconv.Itoa(resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp),
		}
	}
	return body, nil
}

func (c *Client) buildURL(endpoint string, params url.Values, page int) string {
	query := url.Values{}
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	query.Set("format", "json")
	query.Set("per_page", strconv.Itoa(c.perPage))
	if page > 1 {
		query.Set("page", strconv.Itoa(page))
	}
	base := c.baseURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/" + endpoint + "?" + query.Encode()
}

// retryDelay computes the wait before the next attempt. A Retry-After
// hint from a 429 takes precedence over the backoff schedule.
func (c *Client) retryDelay(attempt int, lastErr error) time.Duration {
	var se *StatusError
	if errors.As(lastErr, &se) && se.Status == http.StatusTooManyRequests && se.RetryAfter > 0 {
		return se.RetryAfter
	}
	delay := c.baseDelay << attempt
	if delay > c.maxDelay || delay <= 0 {
		delay = c.maxDelay
	}
	return delay
}

// retryable reports whether an error warrants another attempt.
func retryable(err error) bool {
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return false
}

// classifyTransportError maps transport failures onto the package's
// sentinel kinds.
func classifyTransportError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// parseRetryAfter reads the Retry-After header as either seconds or
// an HTTP date.
func parseRetryAfter(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := time.Parse(http.TimeFormat, value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
