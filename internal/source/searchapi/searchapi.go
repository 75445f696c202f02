// Package searchapi adapts third-party job search APIs. Each adapter issues
// one GET through a scraper.Fetcher, decodes the JSON payload entry by entry
// and maps every entry to a listing with a pure normalizer.
package searchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/FranksOps/internsift/internal/listing"
	"github.com/FranksOps/internsift/internal/scraper"
	"github.com/FranksOps/internsift/internal/source"
)

// ErrMissingKey is returned when an adapter has no API key configured.
var ErrMissingKey = errors.New("searchapi: api key not configured")

// call performs req and returns the body of a 2xx response. Every failure
// is returned as a *source.UnavailableError.
func call(ctx context.Context, f *scraper.Fetcher, src listing.Source, req scraper.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	res, err := f.Do(ctx, req)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			err = fmt.Errorf("%w: %v", source.ErrTimeout, err)
		}
		return nil, source.Unavailable(src, req.URL, err)
	}

	if res.DetectionSrc != "" || !res.OK() {
		ue := source.Unavailable(src, req.URL, fmt.Errorf("searchapi: unexpected status %d", res.StatusCode))
		ue.StatusCode = res.StatusCode
		ue.Detection = res.DetectionSrc
		return nil, ue
	}
	return res.Body, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// entries decodes the array stored under key. Entries are kept raw so that
// one malformed entry does not spoil the rest of the page.
func entries(body []byte, key string) ([]json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("searchapi: decode response: %w", err)
	}
	if msg, ok := envelope["error"]; ok {
		var s string
		if json.Unmarshal(msg, &s) == nil && s != "" {
			return nil, fmt.Errorf("searchapi: api error: %s", s)
		}
	}
	raw, ok := envelope[key]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("searchapi: decode %s: %w", key, err)
	}
	return out, nil
}

// normalizeAll maps up to limit raw entries with fn. An entry that is not
// a JSON object is emitted with every field absent.
func normalizeAll(raw []json.RawMessage, limit int, fn func(fields) listing.Listing) []listing.Listing {
	raw = raw[:min(len(raw), max(limit, 0))]
	out := make([]listing.Listing, 0, len(raw))
	for _, r := range raw {
		var f fields
		if err := json.Unmarshal(r, &f); err != nil {
			f = nil
		}
		out = append(out, fn(f))
	}
	return out
}

// fields is one decoded entry. Every accessor decodes its key on its own,
// so a value of an unexpected type leaves only that field absent.
type fields map[string]json.RawMessage

// str returns the string stored under key, or "" when it is missing or
// not a string.
func (f fields) str(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// list returns the objects of the array stored under key. Elements that
// are not objects come back as empty fields.
func (f fields) list(key string) []fields {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]fields, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &out[i]); err != nil {
			out[i] = nil
		}
	}
	return out
}

// origin returns the scheme and host of endpoint, against which relative
// links in a payload are resolved.
func origin(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || !u.IsAbs() {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
}

func newRequest(endpoint string, query url.Values) scraper.Request {
	return scraper.Request{URL: endpoint, Query: query, Header: http.Header{}}
}
