// Package storage persists the fetch log: one FetchRecord per adapter
// invocation. Listings themselves are never stored.
package storage

import (
	"context"
	"slices"
	"time"
)

// FetchRecord describes the outcome of one adapter invocation.
type FetchRecord struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	Source     string `json:"source"`
	Terms      string `json:"terms"`
	Location   string `json:"location,omitempty"`
	MaxResults int    `json:"max_results"`
	// Outcome is one of the source.Outcome values.
	Outcome      string        `json:"outcome"`
	StatusCode   int           `json:"status_code,omitempty"`
	DetectedBot  bool          `json:"detected_bot"`
	DetectionSrc string        `json:"detection_src,omitempty"` // e.g. "Cloudflare", "LinkedIn"
	Fetched      int           `json:"fetched"`
	Matched      int           `json:"matched"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
	Error        string        `json:"error,omitempty"`
}

// Filter selects fetch records. Zero fields match everything.
type Filter struct {
	Source      string
	Outcome     string
	RunID       string
	DetectedBot *bool
	Since       *time.Time
	Limit       int
	Offset      int
}

// Match reports whether r passes every condition of f except paging.
func (f Filter) Match(r *FetchRecord) bool {
	switch {
	case f.Source != "" && r.Source != f.Source:
		return false
	case f.Outcome != "" && r.Outcome != f.Outcome:
		return false
	case f.RunID != "" && r.RunID != f.RunID:
		return false
	case f.DetectedBot != nil && r.DetectedBot != *f.DetectedBot:
		return false
	case f.Since != nil && r.CreatedAt.Before(*f.Since):
		return false
	}
	return true
}

// Page orders records newest first and applies Offset and Limit. It is
// used by backends that filter in memory.
func (f Filter) Page(records []*FetchRecord) []*FetchRecord {
	slices.SortStableFunc(records, func(a, b *FetchRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*FetchRecord{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Backend stores and queries fetch records. Implementations are safe for
// concurrent use.
type Backend interface {
	Save(ctx context.Context, record *FetchRecord) error
	Query(ctx context.Context, filter Filter) ([]*FetchRecord, error)
	Close() error
}
