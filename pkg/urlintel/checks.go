package urlintel

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/akashahram/Phishing-Email-Detector/pkg/detection"
)

var ipHostPattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// digitSubstitutions maps look-alike digits to the letters they imitate.
var digitSubstitutions = strings.NewReplacer(
	"0", "o", "1", "l", "3", "e", "4", "a",
	"5", "s", "7", "t", "8", "b", "9", "g",
)

func checkIPAddress(host string, result *detection.SignalResult) {
	if ipHostPattern.MatchString(host) {
		result.Add(40, detection.SeverityCritical, detection.CategoryURLStructure,
			fmt.Sprintf("URL uses IP address (%s) instead of domain name", host))
	}
}

func checkSuspiciousTLD(host string, tables *detection.Tables, result *detection.SignalResult) {
	lower := strings.ToLower(host)
	for _, tld := range tables.SuspiciousTLDs {
		if strings.HasSuffix(lower, tld) {
			result.Add(25, detection.SeverityHigh, detection.CategoryDomain,
				fmt.Sprintf("Suspicious TLD detected: %s", tld))
			break
		}
	}
}

// checkTyposquatting flags hosts that closely resemble a known brand domain,
// either by edit distance or by digit-for-letter substitution. Only the
// first matching brand scores.
func checkTyposquatting(host string, tables *detection.Tables, result *detection.SignalResult) {
	lower := strings.ToLower(host)

	for _, legitimate := range tables.LegitimateBrands {
		if lower == legitimate {
			continue
		}

		similarity := similarityRatio(lower, legitimate)
		if similarity > 0.85 {
			result.Add(35, detection.SeverityCritical, detection.CategoryTyposquatting,
				fmt.Sprintf("Possible typosquatting: '%s' resembles '%s' (%d%% similar)",
					host, legitimate, int(similarity*100)))
			break
		}

		if digitSubstitutions.Replace(lower) == legitimate {
			result.Add(30, detection.SeverityHigh, detection.CategoryTyposquatting,
				fmt.Sprintf("Character substitution detected: '%s' mimics '%s'", host, legitimate))
			break
		}
	}
}

// similarityRatio maps edit distance onto [0, 1], 1 meaning identical.
func similarityRatio(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func checkURLLength(rawURL string, result *detection.SignalResult) {
	if len(rawURL) > 150 {
		result.Add(15, detection.SeverityMedium, detection.CategoryURLStructure,
			fmt.Sprintf("Unusually long URL (%d characters)", len(rawURL)))
	}
}

func checkSuspiciousPatterns(rawURL string, parsed *url.URL, tables *detection.Tables, result *detection.SignalResult) {
	lower := strings.ToLower(rawURL)

	if host := parsed.Host; host != "" {
		if labels := strings.Split(host, "."); len(labels) > 4 {
			result.Add(20, detection.SeverityHigh, detection.CategoryURLStructure,
				fmt.Sprintf("Excessive subdomains (%d levels)", len(labels)))
		}
	}

	keywordCount := 0
	for _, keyword := range tables.URLKeywords {
		if strings.Contains(lower, keyword) {
			keywordCount++
		}
	}
	if keywordCount >= 2 {
		result.Add(15, detection.SeverityMedium, detection.CategoryURLStructure,
			fmt.Sprintf("Multiple suspicious keywords in URL (%d found)", keywordCount))
	}

	if strings.Contains(rawURL, "@") {
		result.Add(30, detection.SeverityHigh, detection.CategoryURLStructure,
			"@ symbol in URL (domain obfuscation technique)")
	}
}
