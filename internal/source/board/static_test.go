package board

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FranksOps/internsift/internal/fingerprint"
	"github.com/FranksOps/internsift/internal/listing"
	"github.com/FranksOps/internsift/internal/scraper"
	"github.com/FranksOps/internsift/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFetcher(t *testing.T) *scraper.Fetcher {
	t.Helper()
	f, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestStaticRenderer_Board(t *testing.T) {
	page := fixture(t, "indeed.html")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			http.NotFound(w, r)
		case "/jobs":
			assert.Equal(t, "software intern", r.URL.Query().Get("q"))
			_, _ = w.Write([]byte(page))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	f := newFetcher(t)
	a := New(Indeed.WithBase(ts.URL), NewStaticRenderer(f, scraper.NewRobotsPolicy(f, nil)))

	got, err := a.Fetch(context.Background(), listing.Query{Terms: "software intern", MaxResults: 20})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ts.URL+"/rc/clk?jk=a1b2", listing.Value(got[0].URL))
}

func TestStaticRenderer_MissingResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>loading...</body></html>"))
	}))
	defer ts.Close()

	a := New(Indeed.WithBase(ts.URL), NewStaticRenderer(newFetcher(t), nil))

	got, err := a.Fetch(context.Background(), listing.Query{Terms: "intern", MaxResults: 20})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, source.ErrTimeout)
}

func TestStaticRenderer_Blocked(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Attention Required! | Cloudflare"))
	}))
	defer ts.Close()

	a := New(Glassdoor.WithBase(ts.URL), NewStaticRenderer(newFetcher(t), nil))

	_, err := a.Fetch(context.Background(), listing.Query{Terms: "intern", MaxResults: 20})
	var ue *source.UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusForbidden, ue.StatusCode)
	assert.Equal(t, "Cloudflare", ue.Detection)
}

func TestStaticRenderer_Status(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	a := New(Indeed.WithBase(ts.URL), NewStaticRenderer(newFetcher(t), nil))

	_, err := a.Fetch(context.Background(), listing.Query{Terms: "intern", MaxResults: 20})
	assert.ErrorIs(t, err, source.ErrUnavailable)
	assert.Equal(t, source.OutcomeUnavailable, source.Classify(0, err))
}

func TestStaticRenderer_SlowServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	a := New(Indeed.WithBase(ts.URL), NewStaticRenderer(newFetcher(t), nil), WithWait(50*time.Millisecond))

	_, err := a.Fetch(context.Background(), listing.Query{Terms: "intern", MaxResults: 20})
	assert.ErrorIs(t, err, source.ErrTimeout)
}

func TestStaticRenderer_RobotsDisallow(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /jobs\n"))
			return
		}
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer ts.Close()

	f := newFetcher(t)
	a := New(Indeed.WithBase(ts.URL), NewStaticRenderer(f, scraper.NewRobotsPolicy(f, nil)))

	_, err := a.Fetch(context.Background(), listing.Query{Terms: "intern", MaxResults: 20})
	assert.ErrorIs(t, err, ErrDisallowed)
	assert.ErrorIs(t, err, source.ErrUnavailable)
}
