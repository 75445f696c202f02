// Package fingerprint builds HTTP transports whose TLS ClientHello mimics a
// mainstream browser.
package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard library TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

var helloIDs = map[Profile]utls.ClientHelloID{
	ProfileChrome:  utls.HelloChrome_Auto,
	ProfileFirefox: utls.HelloFirefox_Auto,
	ProfileSafari:  utls.HelloIOS_Auto,
	ProfileRandom:  utls.HelloRandomizedALPN,
}

// ParseProfile validates a profile name from configuration. The empty
// string selects Chrome.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return ProfileChrome, nil
	}
	if p == ProfileGo {
		return p, nil
	}
	if _, ok := helloIDs[p]; !ok {
		return "", fmt.Errorf("fingerprint: unknown profile %q", s)
	}
	return p, nil
}

func helloID(p Profile) (utls.ClientHelloID, error) {
	id, ok := helloIDs[p]
	if !ok {
		return utls.ClientHelloID{}, fmt.Errorf("fingerprint: unknown profile %q", p)
	}
	return id, nil
}

// Transport returns an http.RoundTripper using profile p. ProfileGo yields a
// plain cloned http.Transport. Every other profile performs the TLS
// handshake through utls.UClient and speaks HTTP/2 to origins that select
// it over ALPN. proxyFunc is optional; proxied HTTPS requests tunnel
// through CONNECT with the standard TLS stack.
func Transport(p Profile, proxyFunc func(*http.Request) (*url.URL, error)) (http.RoundTripper, error) {
	return newTransport(p, proxyFunc, nil)
}

func newTransport(p Profile, proxyFunc func(*http.Request) (*url.URL, error), tlsConfig *utls.Config) (http.RoundTripper, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if proxyFunc != nil {
		base.Proxy = proxyFunc
	}
	if p == ProfileGo {
		return base, nil
	}

	id, err := helloID(p)
	if err != nil {
		return nil, err
	}

	t := &uTransport{
		id:     id,
		config: tlsConfig,
		dial:   base.DialContext,
		h1:     base,
		protos: make(map[string]string),
	}
	base.DialTLSContext = t.dialHTTP1
	t.h2 = &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return t.handshake(ctx, network, addr)
		},
		IdleConnTimeout: base.IdleConnTimeout,
	}
	return t, nil
}

// uTransport routes each HTTPS origin to an HTTP/1.1 or HTTP/2 transport
// depending on the protocol the origin picked in its first handshake.
type uTransport struct {
	id     utls.ClientHelloID
	config *utls.Config
	dial   func(ctx context.Context, network, addr string) (net.Conn, error)
	h1     *http.Transport
	h2     *http2.Transport

	mu     sync.Mutex
	protos map[string]string // host:port -> negotiated ALPN protocol
}

func (t *uTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" || t.proxied(req) {
		return t.h1.RoundTrip(req)
	}

	proto, err := t.protocol(req.Context(), hostPort(req.URL))
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	if proto == http2.NextProtoTLS {
		return t.h2.RoundTrip(req)
	}
	return t.h1.RoundTrip(req)
}

// CloseIdleConnections closes idle connections on both transports.
func (t *uTransport) CloseIdleConnections() {
	t.h1.CloseIdleConnections()
	t.h2.CloseIdleConnections()
}

func (t *uTransport) proxied(req *http.Request) bool {
	if t.h1.Proxy == nil {
		return false
	}
	u, err := t.h1.Proxy(req)
	return err != nil || u != nil
}

func (t *uTransport) protocol(ctx context.Context, addr string) (string, error) {
	t.mu.Lock()
	proto, ok := t.protos[addr]
	t.mu.Unlock()
	if ok {
		return proto, nil
	}

	conn, err := t.handshake(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}
	proto = conn.ConnectionState().NegotiatedProtocol
	_ = conn.Close()

	t.mu.Lock()
	t.protos[addr] = proto
	t.mu.Unlock()
	return proto, nil
}

func (t *uTransport) dialHTTP1(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := t.handshake(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if conn.ConnectionState().NegotiatedProtocol == http2.NextProtoTLS {
		_ = conn.Close()
		t.mu.Lock()
		delete(t.protos, addr)
		t.mu.Unlock()
		return nil, fmt.Errorf("fingerprint: %s switched to HTTP/2", addr)
	}
	return conn, nil
}

func (t *uTransport) handshake(ctx context.Context, network, addr string) (*utls.UConn, error) {
	tcpConn, err := t.dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	cfg := &utls.Config{}
	if t.config != nil {
		cfg = t.config.Clone()
	}
	cfg.ServerName = host

	uConn := utls.UClient(tcpConn, cfg, t.id)
	if err := uConn.HandshakeContext(ctx); err != nil {
		_ = tcpConn.Close()
		return nil, fmt.Errorf("fingerprint: utls handshake with %s: %w", host, err)
	}
	return uConn, nil
}

func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}
