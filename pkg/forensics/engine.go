// Package forensics scores email headers for spoofing and relay anomalies:
// authentication results, sender consistency, the Received chain, and
// known bulk-mailer fingerprints.
package forensics

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/akashahram/Phishing-Email-Detector/pkg/detection"
	"github.com/akashahram/Phishing-Email-Detector/pkg/mailparse"
)

// HighRiskThreshold is the forensics score at or above which the header
// signal marks the message high risk.
const HighRiskThreshold = 60

// relayPatterns are matched against each Received header; the first hit
// per header scores. The label is what shows up in the finding.
var relayPatterns = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`), `\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`},
	{regexp.MustCompile(`(?i)\.tk`), `.tk`},
	{regexp.MustCompile(`(?i)\.cf`), `.cf`},
	{regexp.MustCompile(`(?i)\.ga`), `.ga`},
	{regexp.MustCompile(`(?i)\.ml`), `.ml`},
	{regexp.MustCompile(`(?i)\.gq`), `.gq`},
}

// Engine runs the header checks. Safe for concurrent use.
type Engine struct {
	tables *detection.Tables
}

// NewEngine builds an Engine; nil tables fall back to the defaults.
func NewEngine(tables *detection.Tables) *Engine {
	if tables == nil {
		tables = detection.DefaultTables()
	}
	return &Engine{tables: tables}
}

// Analyze scores the message headers. A nil header view (plain-text input)
// yields a nil result, which callers treat as no signal.
func (e *Engine) Analyze(headers *mailparse.HeaderView) *detection.SignalResult {
	if headers == nil {
		return nil
	}

	result := detection.NewSignalResult()
	e.checkAuthentication(headers, result)
	e.checkSenderMismatch(headers, result)
	e.checkReceivedChain(headers, result)
	e.checkSuspiciousHeaders(headers, result)
	return result.Finalize(HighRiskThreshold)
}

// checkAuthentication reads the Authentication-Results header for SPF,
// DKIM, and DMARC outcomes. Failures outrank missing records.
func (e *Engine) checkAuthentication(headers *mailparse.HeaderView, result *detection.SignalResult) {
	auth := strings.ToLower(headers.Get("Authentication-Results"))

	if strings.Contains(auth, "spf=fail") || strings.Contains(auth, "spf=softfail") {
		result.Add(30, detection.SeverityHigh, detection.CategoryAuthentication,
			"SPF authentication failed - sender may be spoofed")
	} else if strings.Contains(auth, "spf=none") {
		result.Add(10, detection.SeverityMedium, detection.CategoryAuthentication,
			"No SPF record found for sender domain")
	}

	if strings.Contains(auth, "dkim=fail") {
		result.Add(25, detection.SeverityHigh, detection.CategoryAuthentication,
			"DKIM signature verification failed")
	} else if strings.Contains(auth, "dkim=none") {
		result.Add(5, detection.SeverityLow, detection.CategoryAuthentication,
			"No DKIM signature present")
	}

	if strings.Contains(auth, "dmarc=fail") {
		result.Add(20, detection.SeverityHigh, detection.CategoryAuthentication,
			"DMARC policy check failed")
	}
}

// checkSenderMismatch compares the From domain against Return-Path and
// Reply-To, then looks for brand names in the display name that the From
// domain cannot legitimately carry.
func (e *Engine) checkSenderMismatch(headers *mailparse.HeaderView, result *detection.SignalResult) {
	fromName, fromAddr := parseAddress(headers.Get("From"))
	_, returnAddr := parseAddress(headers.Get("Return-Path"))
	_, replyAddr := parseAddress(headers.Get("Reply-To"))

	fromDomain := registrableDomain(fromAddr)
	returnDomain := registrableDomain(returnAddr)
	replyDomain := registrableDomain(replyAddr)

	if returnDomain != "" && fromDomain != returnDomain {
		result.Add(25, detection.SeverityHigh, detection.CategorySenderVerification,
			fmt.Sprintf("From domain (%s) doesn't match Return-Path (%s)", fromDomain, returnDomain))
	}

	if replyDomain != "" && fromDomain != replyDomain {
		result.Add(15, detection.SeverityMedium, detection.CategorySenderVerification,
			fmt.Sprintf("Reply-To domain (%s) differs from From domain (%s)", replyDomain, fromDomain))
	}

	if fromName != "" && e.isBrandImpersonation(fromName, fromDomain) {
		result.Add(20, detection.SeverityHigh, detection.CategoryBrandImpersonation,
			fmt.Sprintf("Display name '%s' doesn't match domain '%s'", fromName, fromDomain))
	}
}

// isBrandImpersonation reports whether the display name carries a brand
// token whose legitimate domains do not cover the sender's domain.
func (e *Engine) isBrandImpersonation(displayName, domain string) bool {
	display := strings.ToLower(displayName)
	for brand, legitimateDomains := range e.tables.BrandDomains {
		if !strings.Contains(display, brand) {
			continue
		}
		covered := false
		for _, legit := range legitimateDomains {
			if strings.Contains(domain, legit) {
				covered = true
				break
			}
		}
		if !covered {
			return true
		}
	}
	return false
}

// checkReceivedChain scores the relay path: a missing chain, an overly
// long one, and relays whose names look like raw IPs or throwaway TLDs.
func (e *Engine) checkReceivedChain(headers *mailparse.HeaderView, result *detection.SignalResult) {
	received := headers.Values("Received")

	if len(received) == 0 {
		result.Add(5, detection.SeverityLow, detection.CategoryRelayAnalysis,
			"No Received headers found (unusual)")
		return
	}

	if len(received) > 10 {
		result.Add(10, detection.SeverityMedium, detection.CategoryRelayAnalysis,
			fmt.Sprintf("Excessive mail server hops (%d)", len(received)))
	}

	for _, header := range received {
		for _, pattern := range relayPatterns {
			if pattern.re.MatchString(header) {
				result.Add(8, detection.SeverityMedium, detection.CategoryRelayAnalysis,
					fmt.Sprintf("Suspicious relay server detected: %s", pattern.label))
				break
			}
		}
	}
}

// checkSuspiciousHeaders flags bulk-mailer fingerprints and missing
// standard headers.
func (e *Engine) checkSuspiciousHeaders(headers *mailparse.HeaderView, result *detection.SignalResult) {
	mailer := strings.ToLower(headers.Get("X-Mailer"))
	for _, token := range e.tables.MailerTokens {
		if strings.Contains(mailer, strings.ToLower(token)) {
			result.Add(10, detection.SeverityMedium, detection.CategoryHeaders,
				fmt.Sprintf("Suspicious mail client detected: %s", token))
			break
		}
	}

	for _, header := range []string{"Message-ID", "Date"} {
		if headers.Get(header) == "" {
			result.Add(5, detection.SeverityLow, detection.CategoryHeaders,
				fmt.Sprintf("Missing standard header: %s", header))
		}
	}
}

// parseAddress splits an address header into display name and address,
// tolerating the bare and angle-bracketed forms found in the wild.
func parseAddress(header string) (name, address string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ""
	}
	if parsed, err := mail.ParseAddress(header); err == nil {
		return parsed.Name, parsed.Address
	}
	// Not RFC-clean; salvage whatever looks like an address.
	trimmed := strings.Trim(header, "<>")
	if strings.Contains(trimmed, "@") {
		return "", trimmed
	}
	return header, ""
}

// registrableDomain reduces an address to its eTLD+1, falling back to the
// full literal domain when the public suffix list cannot place it.
func registrableDomain(address string) string {
	if address == "" || !strings.Contains(address, "@") {
		return ""
	}
	domain := strings.ToLower(strings.Trim(address[strings.LastIndex(address, "@")+1:], "<>"))
	if etld, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		return etld
	}
	return domain
}
