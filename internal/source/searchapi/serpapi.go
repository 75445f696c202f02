package searchapi

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/FranksOps/internsift/internal/listing"
	"github.com/FranksOps/internsift/internal/scraper"
	"github.com/FranksOps/internsift/internal/source"
)

// SerpAPIEndpoint is SerpAPI's search endpoint.
const SerpAPIEndpoint = "https://serpapi.com/search.json"

// SerpAPIConfig configures a SerpAPI adapter.
type SerpAPIConfig struct {
	APIKey   string
	Endpoint string // defaults to SerpAPIEndpoint
	Logger   *slog.Logger
}

// SerpAPI queries the Google Jobs engine of SerpAPI.
type SerpAPI struct {
	fetcher  *scraper.Fetcher
	apiKey   string
	endpoint string
	logger   *slog.Logger
}

var _ source.Adapter = (*SerpAPI)(nil)

// NewSerpAPI creates a SerpAPI adapter sending requests through f.
func NewSerpAPI(f *scraper.Fetcher, cfg SerpAPIConfig) *SerpAPI {
	if cfg.Endpoint == "" {
		cfg.Endpoint = SerpAPIEndpoint
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SerpAPI{fetcher: f, apiKey: cfg.APIKey, endpoint: cfg.Endpoint, logger: logger}
}

func (s *SerpAPI) Source() listing.Source { return listing.SourceSerpAPI }

func (s *SerpAPI) Fetch(ctx context.Context, q listing.Query) ([]listing.Listing, error) {
	if s.apiKey == "" {
		return nil, source.Unavailable(listing.SourceSerpAPI, s.endpoint, ErrMissingKey)
	}

	query := url.Values{
		"engine":  {"google_jobs"},
		"q":       {q.Terms},
		"api_key": {s.apiKey},
	}
	if q.Location != "" {
		query.Set("location", q.Location)
	}

	body, err := call(ctx, s.fetcher, listing.SourceSerpAPI, newRequest(s.endpoint, query))
	if err != nil {
		return nil, err
	}
	raw, err := entries(body, "jobs_results")
	if err != nil {
		return nil, source.Unavailable(listing.SourceSerpAPI, s.endpoint, err)
	}

	base := origin(s.endpoint)
	out := normalizeAll(raw, q.MaxResults, func(f fields) listing.Listing {
		return normalizeSerpAPI(f, base)
	})
	s.logger.Debug("serpapi decoded", "results", len(raw), "listings", len(out))
	return out, nil
}

// normalizeSerpAPI maps one jobs_results entry. The first apply option is
// preferred as the URL, then the Google share link. "via" and "job_id" are
// not URLs and are never used. Relative links resolve against base.
func normalizeSerpAPI(f fields, base string) listing.Listing {
	var link *string
	for _, opt := range f.list("apply_options") {
		if link = listing.ResolveURL(base, opt.str("link")); link != nil {
			break
		}
	}
	if link == nil {
		link = listing.ResolveURL(base, f.str("share_link"))
	}

	return listing.Listing{
		Title:       listing.Text(f.str("title")),
		Company:     listing.Text(f.str("company_name")),
		Description: listing.Text(f.str("description")),
		URL:         link,
		Location:    listing.Text(f.str("location")),
	}
}
