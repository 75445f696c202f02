// Package scraper performs outbound HTTP requests to job boards and search
// APIs with fingerprinting, proxy rotation, pacing and block detection.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/internsift/internal/bypass"
	"github.com/FranksOps/internsift/internal/fingerprint"
	"github.com/FranksOps/internsift/internal/metrics"
	"github.com/FranksOps/internsift/pkg/httpclient"
	"github.com/FranksOps/internsift/pkg/proxy"
	"github.com/FranksOps/internsift/pkg/ratelimit"
	"github.com/FranksOps/internsift/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

const defaultMaxBody = 8 << 20

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout time.Duration
	// MaxRedirects defaults to 10; a negative value disables redirects.
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	// Limiter paces all requests; HostLimiter paces each host separately.
	// Either may be nil.
	Limiter     *ratelimit.Limiter
	HostLimiter *ratelimit.HostLimiter
	// MaxBodyBytes caps how much of a response body is read. Defaults to 8 MiB.
	MaxBodyBytes int64
	Detectors    []bypass.Detector
	Logger       *slog.Logger
}

// Request describes one outbound call.
type Request struct {
	Method string // defaults to GET
	URL    string
	Query  url.Values // merged into URL's query string
	Header http.Header
}

// Response is a fully read HTTP response.
type Response struct {
	URL          string
	StatusCode   int
	Header       http.Header
	Body         []byte
	Duration     time.Duration
	DetectionSrc string // non-empty when a bot-protection page was recognized
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher performs requests through one shared client, so connection pools
// and cookie jars (if configured) persist for its lifetime.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher initializes a Fetcher, applying defaults to zero fields.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// The proxy is chosen per request and carried in the request context,
	// so one transport serves every proxy.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		if isLoopback(req.URL.Hostname()) {
			return nil, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("scraper: transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
		DefaultHeaders: http.Header{
			"Accept-Language": {"en-US,en;q=0.5"},
		},
		PrivateHeaders: []string{"X-RapidAPI-Key"},
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: client: %w", err)
	}

	return &Fetcher{config: cfg, client: client, logger: logger}, nil
}

// UserAgent returns the next User-Agent from the fetcher's pool.
func (f *Fetcher) UserAgent() string {
	return f.config.UAPool.Next()
}

// Get fetches targetURL as an HTML page.
func (f *Fetcher) Get(ctx context.Context, targetURL string) (*Response, error) {
	return f.Do(ctx, Request{
		URL: targetURL,
		Header: http.Header{
			"Accept": {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		},
	})
}

// Do executes req. A non-2xx status is not an error; the caller decides
// what it means. Errors are returned for pacing, transport and body read
// failures.
func (f *Fetcher) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return nil, fmt.Errorf("scraper: %w", err)
	}

	if err := f.config.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("scraper: rate limiter: %w", err)
	}
	if err := f.config.HostLimiter.Wait(ctx, target); err != nil {
		return nil, fmt.Errorf("scraper: host limiter: %w", err)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: build request: %w", err)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", f.UserAgent())
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		httpReq = httpReq.WithContext(context.WithValue(httpReq.Context(), proxyKey, activeProxy))
	}

	host := httpReq.URL.Hostname()
	start := time.Now()

	resp, err := f.client.Do(httpReq.Context(), httpReq)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		metrics.RecordHTTP(host, 0, "", 0)
		return nil, fmt.Errorf("scraper: request %s: %w", host, redact(err))
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		metrics.RecordHTTP(host, resp.StatusCode, "", len(body))
		return nil, fmt.Errorf("scraper: read body from %s: %w", host, err)
	}

	out := &Response{
		URL:        target,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}
	if src, ok := bypass.Detect(bypass.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, f.config.Detectors); ok {
		out.DetectionSrc = src
		f.logger.Debug("bot protection detected", "host", host, "status", resp.StatusCode, "vendor", src)
	}

	metrics.RecordHTTP(host, out.StatusCode, out.DetectionSrc, len(body))
	return out, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

func buildURL(raw string, extra url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}
	if len(extra) > 0 {
		q := u.Query()
		for k, vals := range extra {
			for _, v := range vals {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redact drops the query string from the URL a transport error reports,
// since search APIs carry credentials there.
func redact(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	if u, perr := url.Parse(ue.URL); perr == nil && (u.RawQuery != "" || u.ForceQuery) {
		u.RawQuery = ""
		u.ForceQuery = false
		ue.URL = u.String()
	}
	return err
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
