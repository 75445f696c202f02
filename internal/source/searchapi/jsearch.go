package searchapi

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/internsift/internal/listing"
	"github.com/FranksOps/internsift/internal/scraper"
	"github.com/FranksOps/internsift/internal/source"
)

const (
	// JSearchEndpoint is the RapidAPI JSearch search endpoint.
	JSearchEndpoint = "https://jsearch.p.rapidapi.com/search"
	// JSearchHost is sent as X-RapidAPI-Host.
	JSearchHost = "jsearch.p.rapidapi.com"
)

// JSearchConfig configures a JSearch adapter.
type JSearchConfig struct {
	APIKey   string
	Endpoint string // defaults to JSearchEndpoint
	Host     string // defaults to JSearchHost
	Logger   *slog.Logger
}

// JSearch queries the JSearch API on RapidAPI.
type JSearch struct {
	fetcher *scraper.Fetcher
	cfg     JSearchConfig
	logger  *slog.Logger
}

var _ source.Adapter = (*JSearch)(nil)

// NewJSearch creates a JSearch adapter sending requests through f.
func NewJSearch(f *scraper.Fetcher, cfg JSearchConfig) *JSearch {
	if cfg.Endpoint == "" {
		cfg.Endpoint = JSearchEndpoint
	}
	if cfg.Host == "" {
		cfg.Host = JSearchHost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JSearch{fetcher: f, cfg: cfg, logger: logger}
}

func (j *JSearch) Source() listing.Source { return listing.SourceJSearch }

func (j *JSearch) Fetch(ctx context.Context, q listing.Query) ([]listing.Listing, error) {
	if j.cfg.APIKey == "" {
		return nil, source.Unavailable(listing.SourceJSearch, j.cfg.Endpoint, ErrMissingKey)
	}

	req := newRequest(j.cfg.Endpoint, url.Values{
		"query":     {jsearchQuery(q)},
		"page":      {"1"},
		"num_pages": {"1"},
	})
	req.Header.Set("X-RapidAPI-Key", j.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", j.cfg.Host)

	body, err := call(ctx, j.fetcher, listing.SourceJSearch, req)
	if err != nil {
		return nil, err
	}
	raw, err := entries(body, "data")
	if err != nil {
		return nil, source.Unavailable(listing.SourceJSearch, j.cfg.Endpoint, err)
	}

	base := origin(j.cfg.Endpoint)
	out := normalizeAll(raw, q.MaxResults, func(f fields) listing.Listing {
		return normalizeJSearch(f, base)
	})
	j.logger.Debug("jsearch decoded", "results", len(raw), "listings", len(out))
	return out, nil
}

func jsearchQuery(q listing.Query) string {
	if q.Location == "" {
		return q.Terms
	}
	return q.Terms + " in " + q.Location
}

// normalizeJSearch maps one data entry. The apply link is preferred over
// the Google link; relative links resolve against base.
func normalizeJSearch(f fields, base string) listing.Listing {
	link := listing.ResolveURL(base, f.str("job_apply_link"))
	if link == nil {
		link = listing.ResolveURL(base, f.str("job_google_link"))
	}

	var parts []string
	for _, key := range []string{"job_city", "job_state", "job_country"} {
		if p := strings.TrimSpace(f.str(key)); p != "" {
			parts = append(parts, p)
		}
	}

	var posted *time.Time
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(f.str("job_posted_at_datetime_utc"))); err == nil {
		posted = listing.Time(t.UTC())
	}

	return listing.Listing{
		Title:       listing.Text(f.str("job_title")),
		Company:     listing.Text(f.str("employer_name")),
		Description: listing.Text(f.str("job_description")),
		URL:         link,
		Location:    listing.Text(strings.Join(parts, ", ")),
		PostedAt:    posted,
	}
}
