package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsPolicy answers whether a board page may be fetched according to the
// host's robots.txt. Results are cached per host for the policy's lifetime.
type RobotsPolicy struct {
	fetcher *Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotstxt.RobotsData
}

// NewRobotsPolicy creates a policy that fetches robots.txt through fetcher.
func NewRobotsPolicy(fetcher *Fetcher, logger *slog.Logger) *RobotsPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsPolicy{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether userAgent may fetch targetURL. A missing or
// unreadable robots.txt allows everything.
func (r *RobotsPolicy) Allowed(ctx context.Context, targetURL, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("scraper: robots: invalid url: %w", err)
	}

	data, err := r.load(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return false, err
	}
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.FindGroup(userAgent).Test(path), nil
}

// load returns the cached rules for origin, fetching them on first use. The
// fetch runs without the lock held. Nothing is cached when ctx ends first.
func (r *RobotsPolicy) load(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	data, ok := r.cache[origin]
	r.mu.Unlock()
	if ok {
		return data, nil
	}

	data, err := r.fetch(ctx, origin)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		r.logger.Debug("robots.txt unavailable, allowing", "origin", origin, "err", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[origin]; ok {
		return cached, nil
	}
	r.cache[origin] = data
	return data, nil
}

func (r *RobotsPolicy) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	res, err := r.fetcher.Get(ctx, origin+"/robots.txt")
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		return nil, nil
	}
	data, err := robotstxt.FromBytes(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return data, nil
}
