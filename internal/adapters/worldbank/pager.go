package worldbank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/giniscope/pkg/logger"
	"github.com/okian/giniscope/pkg/metrics"
)

// rawRow is one undecoded record from a response page.
type rawRow = json.RawMessage

// flexInt tolerates the API's habit of returning pagination counters
// as either numbers or quoted strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not an integer: %q", s)
	}
	*f = flexInt(n)
	return nil
}

// pageMeta is the first element of the API's [metadata, records]
// envelope.
type pageMeta struct {
	Page    flexInt `json:"page"`
	Pages   flexInt `json:"pages"`
	PerPage flexInt `json:"per_page"`
	Total   flexInt `json:"total"`

	// Message carries upstream error reports delivered inside a 200
	// response, e.g. for an unknown indicator code.
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

// decodeEnvelope splits a response body into metadata and records.
// Any shape violation is a decode failure: the caller must be able to
// trust that a nil error means a well-formed page.
func decodeEnvelope(body []byte) (*pageMeta, []rawRow, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(envelope) == 0 {
		return nil, nil, fmt.Errorf("%w: empty envelope", ErrDecode)
	}

	var meta pageMeta
	if err := json.Unmarshal(envelope[0], &meta); err != nil {
		return nil, nil, fmt.Errorf("%w: metadata: %v", ErrDecode, err)
	}
	if len(meta.Message) > 0 {
		return nil, nil, fmt.Errorf("%w: upstream reported %q", ErrDecode, meta.Message[0].Value)
	}
	if len(envelope) < 2 {
		return nil, nil, fmt.Errorf("%w: missing record element", ErrDecode)
	}

	// A null second element is how the API spells "no records".
	var rows []rawRow
	if string(envelope[1]) != "null" {
		if err := json.Unmarshal(envelope[1], &rows); err != nil {
			return nil, nil, fmt.Errorf("%w: records: %v", ErrDecode, err)
		}
	}
	return &meta, rows, nil
}

// fetchAll drives get across every page of a query. It issues page 1,
// reads the total page count from its metadata, then walks pages 2..N
// sequentially so the aggregate record order is deterministic.
//
// A failure on page 1 surfaces as an error with zero rows consumed.
// A failure on a later page (after retries are exhausted) returns the
// records accumulated so far with partial=true; the caller decides
// whether partial data is usable.
func (c *Client) fetchAll(ctx context.Context, endpoint string, params url.Values) ([]rawRow, bool, error) {
	meta, rows, err := c.get(ctx, endpoint, params, 1)
	if err != nil {
		return nil, false, err
	}
	if meta.Total == 0 {
		return []rawRow{}, false, nil
	}
	if meta.Pages <= 0 {
		return nil, false, fmt.Errorf("%w: metadata reports %d pages for %d records", ErrDecode, meta.Pages, meta.Total)
	}

	all := rows
	for page := 2; page <= int(meta.Pages); page++ {
		_, pageRows, err := c.get(ctx, endpoint, params, page)
		if err != nil {
			// Context cancellation is the caller's abort, not a
			// degraded upstream; propagate it as a hard failure.
			if ctx.Err() != nil {
				return nil, false, err
			}
			c.log.Warn(ctx, "aborting pagination with partial data",
				logger.String("endpoint", endpoint),
				logger.Int("failed_page", page),
				logger.Int("total_pages", int(meta.Pages)),
				logger.Error(err),
			)
			metrics.RecordPartialFetch(endpoint)
			return all, true, nil
		}
		all = append(all, pageRows...)
	}
	return all, false, nil
}
