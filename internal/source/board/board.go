// Package board scrapes job boards that need a rendered page. Each board is
// a set of selectors and a search URL; the adapter renders the page,
// waits for the result list and maps every result card to a listing.
package board

import (
	"net/url"
	"strings"

	"github.com/FranksOps/internsift/internal/listing"
)

// Board describes one job board's search page.
type Board struct {
	Source listing.Source
	// Base is the origin that relative links resolve against.
	Base string
	// Search builds the path and query for q, relative to Base.
	Search func(q listing.Query) string
	// Wait is the selector whose appearance means results have rendered.
	Wait string

	Card        string
	Title       string
	Company     string
	Description string
	// Link selects the anchor holding the listing URL. Empty means the card
	// itself is the anchor.
	Link string
}

// SearchURL returns the absolute search URL for q.
func (b Board) SearchURL(q listing.Query) string {
	return strings.TrimRight(b.Base, "/") + b.Search(q)
}

// WithBase returns a copy of b rooted at base. Empty base leaves b as is.
func (b Board) WithBase(base string) Board {
	if base != "" {
		b.Base = base
	}
	return b
}

// Indeed searches indeed.com.
var Indeed = Board{
	Source: listing.SourceIndeed,
	Base:   "https://www.indeed.com",
	Search: func(q listing.Query) string {
		v := url.Values{"q": {q.Terms}, "l": {q.Location}}
		return "/jobs?" + v.Encode()
	},
	Wait:        "div.job_seen_beacon",
	Card:        "div.job_seen_beacon",
	Title:       "h2.jobTitle span",
	Company:     "span.companyName, [data-testid=\"company-name\"]",
	Description: "div.job-snippet",
	Link:        "h2.jobTitle a, a",
}

// LinkedIn searches LinkedIn's public guest job search.
var LinkedIn = Board{
	Source: listing.SourceLinkedIn,
	Base:   "https://www.linkedin.com",
	Search: func(q listing.Query) string {
		return "/jobs/search/?keywords=" + pathEscape(q.Terms) + "&location=" + pathEscape(q.Location)
	},
	Wait:        "ul.jobs-search__results-list li",
	Card:        "ul.jobs-search__results-list li",
	Title:       "h3.base-search-card__title",
	Company:     "h4.base-search-card__subtitle",
	Description: "p.job-search-card__snippet",
	Link:        "a.base-card__full-link",
}

// Glassdoor searches glassdoor.com.
var Glassdoor = Board{
	Source: listing.SourceGlassdoor,
	Base:   "https://www.glassdoor.com",
	Search: func(q listing.Query) string {
		v := url.Values{
			"sc.keyword": {q.Terms},
			"locT":       {"C"},
			"locId":      {""},
			"locKeyword": {q.Location},
		}
		return "/Job/jobs.htm?" + v.Encode()
	},
	Wait:        "ul.jobs li.react-job-listing",
	Card:        "ul.jobs li.react-job-listing",
	Title:       "a.jobLink span",
	Company:     "div.jobHeader a",
	Description: "div.job-snippet",
	Link:        "a.jobLink",
}

// Boards returns the built-in boards keyed by source.
func Boards() map[listing.Source]Board {
	return map[listing.Source]Board{
		listing.SourceIndeed:    Indeed,
		listing.SourceLinkedIn:  LinkedIn,
		listing.SourceGlassdoor: Glassdoor,
	}
}

// pathEscape encodes spaces as %20, which LinkedIn's search expects.
func pathEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
