package listing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Source identifies an origin that listings can be ingested from.
type Source string

const (
	SourceIndeed    Source = "indeed"
	SourceLinkedIn  Source = "linkedin"
	SourceGlassdoor Source = "glassdoor"
	SourceSerpAPI   Source = "serpapi"
	SourceJSearch   Source = "jsearch"
)

// Sources lists every origin known to the module, browser boards first.
var Sources = []Source{
	SourceIndeed,
	SourceLinkedIn,
	SourceGlassdoor,
	SourceSerpAPI,
	SourceJSearch,
}

// ParseSource normalizes a caller supplied identifier. It does not decide
// whether the source is usable; that is up to the pipeline registry.
func ParseSource(s string) Source {
	return Source(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether s is one of Sources.
func (s Source) Known() bool {
	for _, k := range Sources {
		if s == k {
			return true
		}
	}
	return false
}

func (s Source) String() string { return string(s) }

const (
	DefaultTerms      = "intern"
	DefaultMaxResults = 20
)

// Listing is the record every adapter normalizes into. A nil field means
// the origin did not provide it.
type Listing struct {
	Title       *string `json:"title,omitempty"`
	Company     *string `json:"company,omitempty"`
	Description *string `json:"description,omitempty"`
	// URL is absolute whenever present.
	URL      *string    `json:"url,omitempty"`
	Location *string    `json:"location,omitempty"`
	PostedAt *time.Time `json:"posted_at,omitempty"`

	// Filled by the field extractor when one is configured.
	Skills           []string `json:"skills,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
}

// Incomplete reports whether any of the four core fields is absent.
func (l Listing) Incomplete() bool {
	return l.Title == nil || l.Company == nil || l.Description == nil || l.URL == nil
}

// Query describes what the caller wants fetched.
type Query struct {
	Terms      string
	Location   string
	Source     Source
	MaxResults int
}

// ErrInvalidQuery is returned by Query.Validate.
var ErrInvalidQuery = errors.New("invalid query")

// WithDefaults fills zero fields. fallback is used when Source is empty.
func (q Query) WithDefaults(fallback Source) Query {
	q.Terms = strings.TrimSpace(q.Terms)
	if q.Terms == "" {
		q.Terms = DefaultTerms
	}
	q.Location = strings.TrimSpace(q.Location)
	if q.Source == "" {
		q.Source = fallback
	}
	if q.MaxResults == 0 {
		q.MaxResults = DefaultMaxResults
	}
	return q
}

// Validate checks the fields that have no sensible default.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Terms) == "" {
		return fmt.Errorf("%w: search terms are required", ErrInvalidQuery)
	}
	if q.MaxResults <= 0 {
		return fmt.Errorf("%w: max results must be positive, got %d", ErrInvalidQuery, q.MaxResults)
	}
	return nil
}
