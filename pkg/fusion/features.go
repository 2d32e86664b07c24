package fusion

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/akashahram/Phishing-Email-Detector/pkg/detection"
	"github.com/akashahram/Phishing-Email-Detector/pkg/urlintel"
)

var featureIPPattern = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

// ExtractSignals summarizes the URLs in text: counts, distinct registrable
// domains, IP-literal hosts, and hosts under the short throwaway-TLD list.
func ExtractSignals(text string, tables *detection.Tables) Signals {
	urls := urlintel.ExtractURLs(text)

	signals := Signals{NumURLs: len(urls)}
	uniqueDomains := make(map[string]struct{})

	signalTLDs := make(map[string]struct{}, len(tables.SignalTLDs))
	for _, tld := range tables.SignalTLDs {
		signalTLDs[tld] = struct{}{}
	}

	for _, rawURL := range urls {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			continue
		}
		hostname := strings.ToLower(parsed.Hostname())
		if hostname == "" {
			continue
		}

		if featureIPPattern.MatchString(hostname) {
			signals.HasIP = 1
			uniqueDomains[hostname] = struct{}{}
			continue
		}

		if suffix, _ := publicsuffix.PublicSuffix(hostname); suffix != "" {
			if _, ok := signalTLDs[suffix]; ok {
				signals.SuspiciousTLDs++
			}
		}

		domain := hostname
		if etld, err := publicsuffix.EffectiveTLDPlusOne(hostname); err == nil {
			domain = etld
		}
		uniqueDomains[domain] = struct{}{}
	}

	signals.NumUniqueDomains = len(uniqueDomains)
	return signals
}
