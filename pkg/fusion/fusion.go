// Package fusion combines the three detection signals into a calibrated
// phishing verdict: an ML text score, URL threat intelligence, and header
// forensics, blended under a fixed combination policy with a
// human-readable justification.
package fusion

import (
	"strings"

	"github.com/akashahram/Phishing-Email-Detector/pkg/detection"
)

// Policy holds the fusion constants. The zero value is unusable; use
// DefaultPolicy, optionally overriding the decision threshold.
type Policy struct {
	// Threshold is the probability at or above which a message is
	// classified as phishing.
	Threshold float64

	// KeywordBoost is added to the ML score on the first phrase hit.
	KeywordBoost float64

	// BlendCutoff: below this max-signal probability, signals are
	// blended by weight instead of letting the max stand alone.
	BlendCutoff float64

	// ProbabilityCap keeps the published probability away from a false
	// claim of certainty.
	ProbabilityCap float64

	// MLConfident is the boosted ML score that earns its own reason line.
	MLConfident float64
}

// DefaultPolicy returns the production fusion constants.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:      0.80,
		KeywordBoost:   0.12,
		BlendCutoff:    0.70,
		ProbabilityCap: 0.99,
		MLConfident:    0.85,
	}
}

// ApplyKeywordBoost scans text for the configured phishing phrases and, on
// the first hit, raises the ML score by the boost (capped). Returns the
// boosted score and the phrase that matched, empty when none did.
func (p Policy) ApplyKeywordBoost(text string, mlScore float64, tables *detection.Tables) (float64, string) {
	lower := strings.ToLower(text)
	for _, phrase := range tables.PhishingPhrases {
		if strings.Contains(lower, phrase) {
			boosted := mlScore + p.KeywordBoost
			if boosted > p.ProbabilityCap {
				boosted = p.ProbabilityCap
			}
			return boosted, phrase
		}
	}
	return mlScore, ""
}

// Fuse combines the per-signal scores into the final probability and
// prediction. hasHeaders selects the three-way blend; without headers the
// forensics signal does not exist and the weights redistribute.
func (p Policy) Fuse(mlScore float64, urlScore, forensicsScore int, hasHeaders bool) (probability float64, prediction int) {
	urlProb := float64(urlScore) / 100.0
	forensicsProb := float64(forensicsScore) / 100.0

	probability = mlScore
	if urlProb > probability {
		probability = urlProb
	}
	if forensicsProb > probability {
		probability = forensicsProb
	}

	// A strong single signal stands alone; weak ones corroborate.
	if probability < p.BlendCutoff {
		if hasHeaders {
			probability = mlScore*0.40 + urlProb*0.35 + forensicsProb*0.25
		} else {
			probability = mlScore*0.60 + urlProb*0.40
		}
	}

	if probability > p.ProbabilityCap {
		probability = p.ProbabilityCap
	}
	if probability >= p.Threshold {
		prediction = 1
	}
	return probability, prediction
}

// Reason builds the justification string from the strongest evidence, in
// fixed order so identical inputs produce identical text.
func (p Policy) Reason(mlScore float64, urlScore, forensicsScore int, keywordMatched string, prediction int) string {
	var reasons []string
	if urlScore >= 50 {
		reasons = append(reasons, "Malicious URL detected")
	}
	if forensicsScore >= 60 {
		reasons = append(reasons, "Email header anomalies")
	}
	if keywordMatched != "" {
		reasons = append(reasons, "Phishing keyword: '"+keywordMatched+"'")
	}
	if mlScore >= p.MLConfident {
		reasons = append(reasons, "High ML confidence")
	}

	if len(reasons) == 0 {
		if prediction == 1 {
			return "Phishing detected"
		}
		return "No threats detected"
	}
	return strings.Join(reasons, " | ")
}
