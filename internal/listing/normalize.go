package listing

import (
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Text cleans a raw field value and returns nil when nothing is left.
// Runs of whitespace (including newlines from multi-line snippets) collapse
// to a single space.
func Text(raw string) *string {
	s := strings.Join(strings.Fields(norm.NFKC.String(raw)), " ")
	if s == "" {
		return nil
	}
	return &s
}

// ResolveURL makes ref absolute against base. Absolute http(s) refs are
// returned unchanged. It returns nil if ref is empty, cannot be parsed or
// cannot be made into an http(s) URL.
func ResolveURL(base, ref string) *string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil
	}
	if u.IsAbs() {
		if !isHTTP(u) {
			return nil
		}
		return &ref
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return nil
	}
	u = b.ResolveReference(u)
	if !isHTTP(u) {
		return nil
	}
	s := u.String()
	return &s
}

func isHTTP(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

// Time returns a pointer to t, or nil for the zero time.
func Time(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Value dereferences an optional field, returning "" when absent.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
