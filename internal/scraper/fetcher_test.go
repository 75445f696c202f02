package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/internsift/internal/fingerprint"
	"github.com/FranksOps/internsift/pkg/proxy"
	"github.com/FranksOps/internsift/pkg/useragent"
)

func TestFetcher_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "TestBrowser/1.0" {
			t.Errorf("expected pool User-Agent, got %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Accept-Language") == "" {
			t.Errorf("expected default Accept-Language header")
		}
		w.Header().Set("X-Test", "true")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	fetcher, err := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		UAPool:      useragent.NewPool([]string{"TestBrowser/1.0"}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer fetcher.Close()

	res, err := fetcher.Get(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.OK() || res.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", res.StatusCode)
	}
	if string(res.Body) != "ok" {
		t.Errorf("expected body 'ok', got %s", string(res.Body))
	}
	if res.Header.Get("X-Test") != "true" {
		t.Errorf("expected X-Test header 'true', got %v", res.Header["X-Test"])
	}
	if res.Duration == 0 {
		t.Errorf("expected non-zero duration")
	}
	if res.DetectionSrc != "" {
		t.Errorf("expected no detection, got %s", res.DetectionSrc)
	}
}

func TestFetcher_DoMergesQueryAndHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("engine"); got != "google_jobs" {
			t.Errorf("expected engine=google_jobs, got %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "software intern" {
			t.Errorf("expected q='software intern', got %q", got)
		}
		if got := r.Header.Get("X-RapidAPI-Key"); got != "secret" {
			t.Errorf("expected key header, got %q", got)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo})

	res, err := fetcher.Do(context.Background(), Request{
		URL:    ts.URL + "/search.json?engine=google_jobs",
		Query:  url.Values{"q": {"software intern"}},
		Header: http.Header{"X-RapidAPI-Key": {"secret"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", res.StatusCode)
	}
}

func TestFetcher_RelativeURL(t *testing.T) {
	fetcher, _ := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo})
	if _, err := fetcher.Get(context.Background(), "/jobs?q=intern"); err == nil {
		t.Errorf("expected error for relative URL")
	}
}

func TestFetcher_DetectsBlockPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<html>cf-browser-verification</html>"))
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo})
	res, err := fetcher.Get(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK() {
		t.Errorf("expected non-2xx")
	}
	if res.DetectionSrc != "Cloudflare" {
		t.Errorf("expected Cloudflare detection, got %q", res.DetectionSrc)
	}
}

func TestFetcher_BodyCap(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo, MaxBodyBytes: 100})
	res, err := fetcher.Get(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Body) != 100 {
		t.Errorf("expected body capped at 100 bytes, got %d", len(res.Body))
	}
}

func TestFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     10 * time.Millisecond,
		Fingerprint: fingerprint.ProfileGo,
	})

	_, err := fetcher.Get(context.Background(), ts.URL)
	if err == nil || !strings.Contains(err.Error(), "scraper: request") {
		t.Errorf("expected request timeout error, got %v", err)
	}
}

func TestFetcher_ErrorOmitsQuery(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     10 * time.Millisecond,
		Fingerprint: fingerprint.ProfileGo,
	})

	_, err := fetcher.Do(context.Background(), Request{
		URL:   ts.URL + "/search.json",
		Query: url.Values{"api_key": {"hunter2"}, "q": {"intern"}},
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if strings.Contains(err.Error(), "hunter2") || strings.Contains(err.Error(), "api_key") {
		t.Errorf("expected the query string to be dropped, got %v", err)
	}
	if !strings.Contains(err.Error(), "/search.json") {
		t.Errorf("expected the path to be kept, got %v", err)
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("expected a timeout net.Error, got %v", err)
	}
}

func TestFetcher_Proxy(t *testing.T) {
	// Acts as the proxy and answers every request itself.
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer proxyServer.Close()

	pPool := proxy.NewPool(proxy.Config{MaxFailures: 1, Cooldown: 1 * time.Second})
	if err := pPool.Add(proxyServer.URL); err != nil {
		t.Fatalf("failed to add proxy: %v", err)
	}

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		ProxyPool:   pPool,
	})

	targetServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer targetServer.Close()

	res, err := fetcher.Get(context.Background(), targetServer.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusTeapot {
		t.Errorf("expected 418 Teapot from proxy, got %d", res.StatusCode)
	}
}

func TestFetcher_CanceledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := fetcher.Get(ctx, ts.URL); err == nil {
		t.Errorf("expected error for canceled context")
	}
}
