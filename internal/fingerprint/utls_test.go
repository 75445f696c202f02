package fingerprint

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	utls "github.com/refraction-networking/utls"
)

func TestTransport_Profiles(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	profiles := []Profile{
		ProfileChrome,
		ProfileFirefox,
		ProfileSafari,
		ProfileGo,
		ProfileRandom,
	}

	for _, p := range profiles {
		t.Run(string(p), func(t *testing.T) {
			// httptest uses a self-signed certificate, so verification is
			// switched off while keeping the profile's ClientHello.
			rt, err := newTransport(p, nil, &utls.Config{InsecureSkipVerify: true})
			if err != nil {
				t.Fatalf("unexpected error creating transport for %s: %v", p, err)
			}
			if tr, ok := rt.(*http.Transport); ok {
				if p != ProfileGo {
					t.Fatalf("expected a uTLS transport for profile %s", p)
				}
				tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			}

			resp, err := (&http.Client{Transport: rt}).Get(ts.URL)
			if err != nil {
				t.Fatalf("request failed for profile %s: %v", p, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200 OK, got %d for profile %s", resp.StatusCode, p)
			}
		})
	}
}

func TestTransport_HTTP2Origin(t *testing.T) {
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Proto)
	}))
	ts.EnableHTTP2 = true
	ts.StartTLS()
	defer ts.Close()

	for _, p := range []Profile{ProfileChrome, ProfileFirefox, ProfileSafari} {
		t.Run(string(p), func(t *testing.T) {
			rt, err := newTransport(p, nil, &utls.Config{InsecureSkipVerify: true})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			client := &http.Client{Transport: rt}

			// The second request reuses the pooled HTTP/2 connection.
			for range 2 {
				resp, err := client.Get(ts.URL)
				if err != nil {
					t.Fatalf("request failed for profile %s: %v", p, err)
				}
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()

				if resp.StatusCode != http.StatusOK {
					t.Errorf("expected 200 OK, got %d", resp.StatusCode)
				}
				if string(body) != "HTTP/2.0" {
					t.Errorf("expected the server to see HTTP/2.0, got %q", body)
				}
			}
		})
	}
}

func TestTransport_PlainHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	rt, err := Transport(ProfileChrome, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := (&http.Client{Transport: rt}).Get(ts.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
}

func TestTransport_UnknownProfile(t *testing.T) {
	_, err := Transport(Profile("unknown_browser"), nil)
	if err == nil {
		t.Fatal("expected error for unknown profile, got nil")
	}
	if err.Error() != `fingerprint: unknown profile "unknown_browser"` {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestParseProfile(t *testing.T) {
	cases := map[string]Profile{
		"":        ProfileChrome,
		"Chrome":  ProfileChrome,
		"firefox": ProfileFirefox,
		" go ":    ProfileGo,
		"random":  ProfileRandom,
	}
	for in, want := range cases {
		got, err := ParseProfile(in)
		if err != nil {
			t.Errorf("ParseProfile(%q): unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseProfile(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseProfile("netscape"); err == nil {
		t.Errorf("expected error for unknown profile")
	}
}
