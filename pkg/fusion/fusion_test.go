package fusion

import (
	"math"
	"testing"

	"github.com/akashahram/Phishing-Email-Detector/pkg/detection"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplyKeywordBoost(t *testing.T) {
	policy := DefaultPolicy()
	tables := detection.DefaultTables()

	t.Run("first phrase match boosts once", func(t *testing.T) {
		boosted, matched := policy.ApplyKeywordBoost(
			"your account suspended and urgent action required", 0.5, tables)
		if matched != "account suspended" {
			t.Errorf("matched = %q, want first phrase in table order", matched)
		}
		if !almostEqual(boosted, 0.62) {
			t.Errorf("boosted = %v, want 0.62", boosted)
		}
	})

	t.Run("boost is capped", func(t *testing.T) {
		boosted, _ := policy.ApplyKeywordBoost("please verify your account", 0.95, tables)
		if boosted != 0.99 {
			t.Errorf("boosted = %v, want cap 0.99", boosted)
		}
	})

	t.Run("no phrase leaves score untouched", func(t *testing.T) {
		boosted, matched := policy.ApplyKeywordBoost("lunch at noon?", 0.5, tables)
		if boosted != 0.5 || matched != "" {
			t.Errorf("got (%v, %q), want (0.5, \"\")", boosted, matched)
		}
	})

	t.Run("match is case-insensitive", func(t *testing.T) {
		_, matched := policy.ApplyKeywordBoost("PASSWORD RESET required", 0.1, tables)
		if matched != "password reset" {
			t.Errorf("matched = %q", matched)
		}
	})
}

func TestFuse(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name            string
		ml              float64
		url, forensics  int
		hasHeaders      bool
		wantProbability float64
		wantPrediction  int
	}{
		{"strong ml stands alone", 0.90, 0, 0, false, 0.90, 1},
		{"verified url capped at 0.99", 0.10, 100, 0, false, 0.99, 1},
		{"strong forensics stands alone below threshold", 0.10, 0, 75, true, 0.75, 0},
		{"weak signals blend with headers", 0.50, 40, 20, true, 0.50*0.40 + 0.40*0.35 + 0.20*0.25, 0},
		{"weak signals blend without headers", 0.50, 40, 0, false, 0.50*0.60 + 0.40*0.40, 0},
		{"at the blend cutoff the max stands", 0.70, 0, 0, false, 0.70, 0},
		{"threshold is inclusive", 0.80, 0, 0, false, 0.80, 1},
		{"all zero", 0, 0, 0, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probability, prediction := policy.Fuse(tt.ml, tt.url, tt.forensics, tt.hasHeaders)
			if !almostEqual(probability, tt.wantProbability) {
				t.Errorf("probability = %v, want %v", probability, tt.wantProbability)
			}
			if prediction != tt.wantPrediction {
				t.Errorf("prediction = %d, want %d", prediction, tt.wantPrediction)
			}
		})
	}
}

func TestReason(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name       string
		ml         float64
		url, fore  int
		keyword    string
		prediction int
		want       string
	}{
		{
			"all evidence in fixed order",
			0.90, 100, 75, "password reset", 1,
			"Malicious URL detected | Email header anomalies | Phishing keyword: 'password reset' | High ML confidence",
		},
		{
			"url only",
			0.10, 60, 0, "", 1,
			"Malicious URL detected",
		},
		{
			"keyword only",
			0.40, 0, 0, "verify your account", 0,
			"Phishing keyword: 'verify your account'",
		},
		{
			"no evidence but positive",
			0.10, 0, 0, "", 1,
			"Phishing detected",
		},
		{
			"no evidence and negative",
			0.10, 0, 0, "", 0,
			"No threats detected",
		},
		{
			"forensics below its reason threshold stays silent",
			0.10, 0, 59, "", 0,
			"No threats detected",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Reason(tt.ml, tt.url, tt.fore, tt.keyword, tt.prediction)
			if got != tt.want {
				t.Errorf("Reason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractSignals(t *testing.T) {
	tables := detection.DefaultTables()

	t.Run("mixed urls", func(t *testing.T) {
		text := "see http://192.168.1.5/a and http://mail.google.com/b plus http://prize.tk/c and http://google.com/d"
		signals := ExtractSignals(text, tables)

		if signals.NumURLs != 4 {
			t.Errorf("NumURLs = %d, want 4", signals.NumURLs)
		}
		// 192.168.1.5, google.com (twice, deduplicated by registrable domain), prize.tk
		if signals.NumUniqueDomains != 3 {
			t.Errorf("NumUniqueDomains = %d, want 3", signals.NumUniqueDomains)
		}
		if signals.HasIP != 1 {
			t.Errorf("HasIP = %d, want 1", signals.HasIP)
		}
		if signals.SuspiciousTLDs != 1 {
			t.Errorf("SuspiciousTLDs = %d, want 1", signals.SuspiciousTLDs)
		}
	})

	t.Run("no urls", func(t *testing.T) {
		signals := ExtractSignals("just words", tables)
		if signals != (Signals{}) {
			t.Errorf("want zero signals, got %+v", signals)
		}
	})

	t.Run("xyz is not in the signal tld subset", func(t *testing.T) {
		signals := ExtractSignals("http://cheap.xyz/deal", tables)
		if signals.SuspiciousTLDs != 0 {
			t.Errorf("SuspiciousTLDs = %d; .xyz scores in URL checks but not here", signals.SuspiciousTLDs)
		}
	})
}

func TestRound4(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.123456, 0.1235},
		{0.99, 0.99},
		{0, 0},
		{0.41200000000000003, 0.412},
	}
	for _, tt := range tests {
		if got := round4(tt.in); got != tt.want {
			t.Errorf("round4(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
