// Package classify decides which listings match a target role.
package classify

import (
	"iter"
	"slices"
	"strings"

	"github.com/FranksOps/internsift/internal/listing"
)

// RoleSpec is a keyword policy evaluated against listing titles.
//
// A title matches when it contains at least one Include keyword and, if
// Categories is non-empty, at least one Categories keyword. Comparison is a
// case-insensitive substring test.
type RoleSpec struct {
	Name       string   `yaml:"-" json:"name,omitempty"`
	Include    []string `yaml:"include" json:"include"`
	Categories []string `yaml:"categories" json:"categories,omitempty"`
}

// Normalized returns a copy with keywords lowercased, trimmed and
// de-duplicated. Empty keywords are dropped.
func (r RoleSpec) Normalized() RoleSpec {
	return RoleSpec{
		Name:       r.Name,
		Include:    normalizeKeywords(r.Include),
		Categories: normalizeKeywords(r.Categories),
	}
}

// Matches reports whether title satisfies spec. An absent title never
// matches, and neither does a spec with no include keywords.
func Matches(title *string, spec RoleSpec) bool {
	return match(title, spec.Normalized())
}

// match expects a normalized spec.
func match(title *string, spec RoleSpec) bool {
	if title == nil {
		return false
	}
	t := strings.ToLower(*title)

	if !containsAny(t, spec.Include) {
		return false
	}
	if len(spec.Categories) > 0 && !containsAny(t, spec.Categories) {
		return false
	}
	return true
}

// Filter returns the listings whose titles match spec, in input order.
// The input slice is not modified.
func Filter(listings []listing.Listing, spec RoleSpec) []listing.Listing {
	spec = spec.Normalized()
	out := make([]listing.Listing, 0, len(listings))
	for _, l := range listings {
		if match(l.Title, spec) {
			out = append(out, l)
		}
	}
	return out
}

// FilterSeq is the lazy form of Filter.
func FilterSeq(seq iter.Seq[listing.Listing], spec RoleSpec) iter.Seq[listing.Listing] {
	spec = spec.Normalized()
	return func(yield func(listing.Listing) bool) {
		for l := range seq {
			if !match(l.Title, spec) {
				continue
			}
			if !yield(l) {
				return
			}
		}
	}
}

func containsAny(lowerTitle string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lowerTitle, k) {
			return true
		}
	}
	return false
}

func normalizeKeywords(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || slices.Contains(out, k) {
			continue
		}
		out = append(out, k)
	}
	return out
}
