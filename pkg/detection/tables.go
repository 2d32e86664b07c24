package detection

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tables holds the fixed detection lists as injected data rather than
// hard-coded branches, so deployments can retune them without recompiling
// the scoring logic. Zero-valued fields fall back to the defaults on load.
type Tables struct {
	// LegitimateBrands are registrable domains compared against every URL
	// host for typosquatting.
	LegitimateBrands []string `yaml:"legitimate_brands"`

	// BrandDomains maps a display-name token to the domains that may
	// legitimately carry it (header forensics brand impersonation).
	BrandDomains map[string][]string `yaml:"brand_domains"`

	// SuspiciousTLDs is the URL-check TLD denylist (leading dot included).
	SuspiciousTLDs []string `yaml:"suspicious_tlds"`

	// URLKeywords are credential-phishing words counted inside URLs.
	URLKeywords []string `yaml:"url_keywords"`

	// PhishingPhrases trigger the fusion keyword boost; first match wins.
	PhishingPhrases []string `yaml:"phishing_phrases"`

	// SignalTLDs is the smaller TLD set (no dots) counted by the
	// lightweight feature summary. Distinct from SuspiciousTLDs.
	SignalTLDs []string `yaml:"signal_tlds"`

	// MailerTokens are bulk/spam mailer markers matched against X-Mailer.
	MailerTokens []string `yaml:"mailer_tokens"`
}

// DefaultTables returns the built-in detection lists.
func DefaultTables() *Tables {
	return &Tables{
		LegitimateBrands: []string{
			"paypal.com", "amazon.com", "microsoft.com", "apple.com", "google.com",
			"facebook.com", "instagram.com", "twitter.com", "linkedin.com",
			"chase.com", "bankofamerica.com", "wellsfargo.com", "citibank.com",
			"fedex.com", "ups.com", "dhl.com", "usps.com",
			"netflix.com", "spotify.com", "dropbox.com",
		},
		BrandDomains: map[string][]string{
			"paypal":    {"paypal.com"},
			"amazon":    {"amazon.com", "amazon.co.uk"},
			"microsoft": {"microsoft.com", "outlook.com", "live.com"},
			"apple":     {"apple.com", "icloud.com"},
			"google":    {"google.com", "gmail.com"},
			"facebook":  {"facebook.com", "fb.com"},
			"bank":      {"bank", "chase.com", "wellsfargo.com", "bankofamerica.com"},
			"irs":       {"irs.gov"},
			"fedex":     {"fedex.com"},
			"ups":       {"ups.com"},
			"dhl":       {"dhl.com"},
		},
		SuspiciousTLDs: []string{
			".tk", ".cf", ".ga", ".gq", ".ml", ".xyz", ".top", ".work", ".click",
		},
		URLKeywords: []string{
			"login", "verify", "account", "secure", "update", "confirm", "banking", "signin",
		},
		PhishingPhrases: []string{
			"verify your account", "password reset", "account suspended",
			"urgent action required", "confirm your identity", "billing information",
			"login to continue", "update your account",
		},
		SignalTLDs: []string{"cf", "tk", "ga", "gq", "ml"},
		MailerTokens: []string{
			"PHPMailer", "Bulk", "Mass", "Spam",
		},
	}
}

// LoadTables reads YAML overrides from path and merges them over the
// defaults. Lists present in the file replace the default list wholesale;
// missing lists keep their defaults.
func LoadTables(path string) (*Tables, error) {
	tables := DefaultTables()
	if path == "" {
		return tables, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tables file: %w", err)
	}

	var overrides Tables
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parsing tables file: %w", err)
	}

	if len(overrides.LegitimateBrands) > 0 {
		tables.LegitimateBrands = overrides.LegitimateBrands
	}
	if len(overrides.BrandDomains) > 0 {
		tables.BrandDomains = overrides.BrandDomains
	}
	if len(overrides.SuspiciousTLDs) > 0 {
		tables.SuspiciousTLDs = overrides.SuspiciousTLDs
	}
	if len(overrides.URLKeywords) > 0 {
		tables.URLKeywords = overrides.URLKeywords
	}
	if len(overrides.PhishingPhrases) > 0 {
		tables.PhishingPhrases = overrides.PhishingPhrases
	}
	if len(overrides.SignalTLDs) > 0 {
		tables.SignalTLDs = overrides.SignalTLDs
	}
	if len(overrides.MailerTokens) > 0 {
		tables.MailerTokens = overrides.MailerTokens
	}

	return tables, nil
}
