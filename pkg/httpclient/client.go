// Package httpclient wraps net/http with the redirect, cookie and header
// policies used for board and API requests.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Config configures a Client.
type Config struct {
	// Timeout bounds a whole exchange, body included. Defaults to 30s.
	Timeout time.Duration
	// MaxRedirects < 0 returns the first redirect response as is.
	MaxRedirects int
	UseCookieJar bool
	Transport    http.RoundTripper
	// DefaultHeaders fill in headers a request does not set itself.
	DefaultHeaders http.Header
	// PrivateHeaders are removed when a redirect leaves the original host.
	// net/http already does this for Authorization and Cookie only.
	PrivateHeaders []string
}

// Client is an http.Client with default headers.
type Client struct {
	*http.Client
	headers http.Header
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	hc := &http.Client{
		Timeout:       cfg.Timeout,
		Transport:     cfg.Transport,
		CheckRedirect: redirectPolicy(cfg.MaxRedirects, cfg.PrivateHeaders),
	}
	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: cookie jar: %w", err)
		}
		hc.Jar = jar
	}
	return &Client{Client: hc, headers: cfg.DefaultHeaders.Clone()}, nil
}

func redirectPolicy(limit int, private []string) func(*http.Request, []*http.Request) error {
	if limit < 0 {
		return func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= limit {
			return fmt.Errorf("httpclient: stopped after %d redirects", limit)
		}
		if req.URL.Host != via[0].URL.Host {
			for _, h := range private {
				req.Header.Del(h)
			}
		}
		return nil
	}
}

// Do sends req bound to ctx after filling in default headers.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: nil context")
	}

	out := req.Clone(ctx)
	for k, vals := range c.headers {
		if out.Header.Get(k) == "" {
			out.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vals...)
		}
	}

	resp, err := c.Client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}
