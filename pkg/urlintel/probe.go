package urlintel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/akashahram/Phishing-Email-Detector/pkg/detection"
	"github.com/akashahram/Phishing-Email-Detector/pkg/httputil"
	"github.com/akashahram/Phishing-Email-Detector/pkg/telemetry"
)

// Resolver is the subset of net.Resolver used for the DNS existence check.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Prober performs the network-touching URL checks: redirect walking and
// DNS resolution. Every failure degrades that single check to no signal.
type Prober struct {
	client   *http.Client
	resolver Resolver
	maxHops  int
}

// NewProber builds a Prober. The client must not follow redirects itself;
// hops are walked manually so they can be counted. A nil resolver uses the
// system resolver.
func NewProber(client *http.Client, resolver Resolver) *Prober {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Prober{client: client, resolver: resolver, maxHops: 10}
}

// checkRedirects walks the redirect chain of rawURL with HEAD requests and
// scores long chains and cross-domain destinations.
func (p *Prober) checkRedirects(ctx context.Context, rawURL string, result *detection.SignalResult) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return
	}

	hops, finalURL, err := p.followRedirects(ctx, rawURL)
	if err != nil {
		telemetry.ProbeFailures.WithLabelValues("redirect").Inc()
		return
	}
	if hops == 0 {
		return
	}

	if hops > 3 {
		result.Add(20, detection.SeverityHigh, detection.CategoryRedirects,
			fmt.Sprintf("Multiple redirects detected (%d hops)", hops))
	}

	originalHost := hostOf(rawURL)
	finalHost := hostOf(finalURL)
	if originalHost != "" && finalHost != "" && originalHost != finalHost {
		result.Add(15, detection.SeverityMedium, detection.CategoryRedirects,
			fmt.Sprintf("Redirect to different domain: %s -> %s", originalHost, finalHost))
	}
}

// followRedirects issues HEAD requests hop by hop, returning the number of
// redirect hops taken and the final URL reached.
func (p *Prober) followRedirects(ctx context.Context, rawURL string) (int, string, error) {
	current := rawURL
	for hop := 0; hop <= p.maxHops; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
		if err != nil {
			return 0, "", err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return 0, "", err
		}
		httputil.DrainAndClose(resp.Body)

		if resp.StatusCode < 300 || resp.StatusCode > 399 {
			return hop, current, nil
		}

		location, err := resp.Location()
		if err != nil {
			// Redirect status without a usable Location; chain ends here.
			return hop, current, nil
		}
		current = location.String()
	}
	return p.maxHops, current, nil
}

// checkDNS flags hosts that do not resolve at all. Resolver errors other
// than a definitive not-found are ignored.
func (p *Prober) checkDNS(ctx context.Context, host string, result *detection.SignalResult) {
	if host == "" || ipHostPattern.MatchString(host) {
		return
	}

	_, err := p.resolver.LookupHost(ctx, host)
	if err == nil {
		return
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		result.Add(25, detection.SeverityHigh, detection.CategoryDomain,
			fmt.Sprintf("Domain does not resolve: %s", host))
		return
	}
	telemetry.ProbeFailures.WithLabelValues("dns").Inc()
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}
