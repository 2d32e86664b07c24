// Package httputil provides shared HTTP utilities with connection pooling
// and safe response handling for the detection engine's network probes.
package httputil

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaxResponseSize is the default maximum size for reading HTTP response bodies.
// Threat-intel responses are small; anything larger is suspect.
const MaxResponseSize = 10 * 1024 * 1024 // 10MB

// Shared transport with optimized connection pooling.
// This is safe for concurrent use and reuses TCP connections across the
// redirect probes and API calls issued for every analyzed message.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// TimeoutTier defines standard timeout categories for different operation types.
type TimeoutTier int

const (
	// TierProbe for per-URL redirect probes that must never stall an
	// analysis (1s). A probe that cannot answer in a second is skipped.
	TierProbe TimeoutTier = iota
	// TierIntel for threat-intelligence API calls such as PhishTank (5s)
	TierIntel
)

var timeoutDurations = map[TimeoutTier]time.Duration{
	TierProbe: 1 * time.Second,
	TierIntel: 5 * time.Second,
}

// Singleton clients for each timeout tier - initialized once, reused everywhere.
var (
	clientProbe *http.Client
	clientIntel *http.Client
	clientOnce  sync.Once
)

func initClients() {
	// The probe client never follows redirects on its own: redirect hops
	// are a phishing signal, so callers walk them one at a time.
	clientProbe = &http.Client{
		Timeout:   timeoutDurations[TierProbe],
		Transport: sharedTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	clientIntel = &http.Client{
		Timeout:   timeoutDurations[TierIntel],
		Transport: sharedTransport,
	}
}

// Client returns a shared HTTP client for the given timeout tier.
// These clients share a connection pool and should be used instead of
// creating new http.Client instances per request.
//
// Usage:
//
//	client := httputil.Client(httputil.TierIntel)
//	resp, err := client.PostForm(url, form)
func Client(tier TimeoutTier) *http.Client {
	clientOnce.Do(initClients)
	switch tier {
	case TierProbe:
		return clientProbe
	default:
		return clientIntel
	}
}

// ProbeClient returns a client with 1s timeout that does not auto-follow
// redirects (redirect-chain probing walks hops itself).
func ProbeClient() *http.Client {
	return Client(TierProbe)
}

// IntelClient returns a client with 5s timeout (threat-intel API calls).
func IntelClient() *http.Client {
	return Client(TierIntel)
}

// ProbeClientWithTimeout returns a probe client (no redirect following)
// honoring a configured timeout. Zero or negative falls back to the shared
// tier default.
func ProbeClientWithTimeout(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		return ProbeClient()
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// IntelClientWithTimeout returns a threat-intel client honoring a
// configured timeout. Zero or negative falls back to the shared tier
// default.
func IntelClientWithTimeout(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		return IntelClient()
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
}

// ReadResponseBody safely reads an HTTP response body with size limits.
// This prevents OOM from a malicious or compromised endpoint; probed URLs
// are hostile by assumption.
//
// Usage:
//
//	body, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
func ReadResponseBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// DrainAndClose properly drains and closes an HTTP response body.
// This ensures connection reuse in the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
