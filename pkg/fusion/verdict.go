package fusion

import (
	"math"

	"github.com/akashahram/Phishing-Email-Detector/pkg/detection"
)

// Signals is the lightweight URL feature summary attached to every
// verdict. It is descriptive only and carries no score weight.
type Signals struct {
	NumURLs          int `json:"num_urls"`
	NumUniqueDomains int `json:"num_unique_domains"`
	HasIP            int `json:"has_ip"`
	SuspiciousTLDs   int `json:"suspicious_tlds"`
}

// Verdict is the complete analysis outcome for one message. Built fresh
// per call and never mutated afterwards; identical input against unchanged
// caches produces a bit-identical Verdict.
type Verdict struct {
	Prediction     int                 `json:"prediction"`
	Probability    float64             `json:"probability"`
	MLScore        float64             `json:"ml_score"`
	URLRiskScore   int                 `json:"url_risk_score"`
	ForensicsScore int                 `json:"forensics_score"`
	Signals        Signals             `json:"signals"`
	Findings       []detection.Finding `json:"findings"`
	Reason         string              `json:"reason"`
}

// IsPhishing reports the binary outcome.
func (v *Verdict) IsPhishing() bool { return v.Prediction == 1 }

// round4 truncates probabilities to the four decimal places the verdict
// publishes.
func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
