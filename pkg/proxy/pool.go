// Package proxy rotates outbound proxies for board and API requests and
// benches the ones that keep failing.
package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProxy is returned when a result is reported for a proxy the
// pool does not hold.
var ErrUnknownProxy = errors.New("proxy: not in pool")

var schemes = map[string]bool{"http": true, "https": true, "socks5": true}

// Config tunes benching.
type Config struct {
	// MaxFailures is the number of consecutive failures that benches a
	// proxy. Defaults to 3.
	MaxFailures int
	// Cooldown is how long a benched proxy sits out. Defaults to 5m.
	Cooldown time.Duration
}

type entry struct {
	url          *url.URL
	failures     int // consecutive
	successes    int
	benchedUntil time.Time
}

// Pool hands out proxies round-robin, skipping benched ones. It is safe for
// concurrent use.
type Pool struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries []*entry
	byKey   map[string]*entry
	next    int
}

// NewPool creates an empty pool.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{cfg: cfg, now: time.Now, byKey: make(map[string]*entry)}
}

// LoadFile adds the proxies listed in path, one per line. Blank lines and
// lines starting with # are skipped.
func (p *Pool) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("proxy: read list: %w", err)
	}

	var raws []string
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	if len(raws) == 0 {
		return fmt.Errorf("proxy: %s lists no proxies", path)
	}
	return p.Add(raws...)
}

// Add parses and adds proxies. A missing scheme means http. Duplicates are
// ignored. Nothing is added if any entry is invalid.
func (p *Pool) Add(raws ...string) error {
	parsed := make([]*url.URL, 0, len(raws))
	for _, raw := range raws {
		u, err := parse(raw)
		if err != nil {
			return err
		}
		parsed = append(parsed, u)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range parsed {
		key := u.String()
		if _, ok := p.byKey[key]; ok {
			continue
		}
		e := &entry{url: u}
		p.entries = append(p.entries, e)
		p.byKey[key] = e
	}
	return nil
}

func parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("proxy: parse %q: %w", raw, err)
	}
	if !schemes[u.Scheme] {
		return nil, fmt.Errorf("proxy: unsupported scheme %q in %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy: missing host in %q", raw)
	}
	return u, nil
}

// Len returns the number of proxies, benched or not.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Healthy returns the number of proxies that are not benched.
func (p *Pool) Healthy() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	n := 0
	for _, e := range p.entries {
		if !now.Before(e.benchedUntil) {
			n++
		}
	}
	return n
}

// Next returns the next proxy that is not benched, or nil when the pool is
// empty or every proxy is benched. A nil pool returns nil.
func (p *Pool) Next() *url.URL {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range len(p.entries) {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)
		if now.Before(e.benchedUntil) {
			continue
		}
		return e.url
	}
	return nil
}

// MarkSuccess clears the proxy's failure streak.
func (p *Pool) MarkSuccess(u *url.URL) error {
	return p.update(u, func(e *entry) {
		e.successes++
		e.failures = 0
	})
}

// MarkFailure extends the proxy's failure streak and benches it for the
// cooldown once the streak reaches MaxFailures.
func (p *Pool) MarkFailure(u *url.URL) error {
	return p.update(u, func(e *entry) {
		e.failures++
		if e.failures >= p.cfg.MaxFailures {
			e.benchedUntil = p.now().Add(p.cfg.Cooldown)
			e.failures = 0
		}
	})
}

func (p *Pool) update(u *url.URL, fn func(*entry)) error {
	if u == nil {
		return fmt.Errorf("%w: nil url", ErrUnknownProxy)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byKey[u.String()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProxy, u.Redacted())
	}
	fn(e)
	return nil
}
