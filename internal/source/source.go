// Package source defines the adapter contract shared by every origin.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/FranksOps/internsift/internal/listing"
)

// Adapter fetches listings from one origin and normalizes them.
//
// Implementations return at most q.MaxResults listings in origin order.
// A non-nil error always matches ErrUnavailable and is informational: the
// caller treats it as an empty result.
type Adapter interface {
	Source() listing.Source
	Fetch(ctx context.Context, q listing.Query) ([]listing.Listing, error)
}

var (
	// ErrUnavailable marks an origin that could not produce content.
	ErrUnavailable = errors.New("source unavailable")
	// ErrTimeout marks a bounded content wait that expired. It also
	// matches ErrUnavailable when wrapped in UnavailableError.
	ErrTimeout = errors.New("timed out waiting for content")
)

// UnavailableError carries diagnostics for a soft fetch failure.
type UnavailableError struct {
	Source     listing.Source
	URL        string
	StatusCode int
	Detection  string // bot protection vendor, if one was recognized
	Err        error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Source, ErrUnavailable)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detection != "" {
		msg += " (blocked by " + e.Detection + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Unavailable builds an *UnavailableError.
func Unavailable(src listing.Source, url string, err error) *UnavailableError {
	return &UnavailableError{Source: src, URL: url, Err: err}
}

// Outcome classifies the result of a fetch for logs, metrics and the
// fetch log.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeEmpty       Outcome = "empty"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeBlocked     Outcome = "blocked"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeCanceled    Outcome = "canceled"
)

// Classify maps a fetch result onto an Outcome.
func Classify(n int, err error) Outcome {
	var ue *UnavailableError
	switch {
	case err == nil && n == 0:
		return OutcomeEmpty
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.As(err, &ue) && ue.Detection != "":
		return OutcomeBlocked
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	default:
		return OutcomeUnavailable
	}
}

// Registry maps source identifiers to adapters. It is built once at
// startup and only read afterwards.
type Registry struct {
	adapters map[listing.Source]Adapter
}

// NewRegistry registers the given adapters. Later duplicates replace
// earlier ones.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[listing.Source]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		r.adapters[a.Source()] = a
	}
	return r
}

// Lookup returns the adapter for src.
func (r *Registry) Lookup(src listing.Source) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	a, ok := r.adapters[src]
	return a, ok
}

// Sources returns the registered identifiers, sorted.
func (r *Registry) Sources() []listing.Source {
	if r == nil {
		return nil
	}
	out := make([]listing.Source, 0, len(r.adapters))
	for s := range r.adapters {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Cap truncates ls to at most max entries.
func Cap(ls []listing.Listing, max int) []listing.Listing {
	if max >= 0 && len(ls) > max {
		return ls[:max]
	}
	return ls
}
