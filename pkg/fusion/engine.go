package fusion

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/akashahram/Phishing-Email-Detector/pkg/detection"
	"github.com/akashahram/Phishing-Email-Detector/pkg/forensics"
	"github.com/akashahram/Phishing-Email-Detector/pkg/mailparse"
	"github.com/akashahram/Phishing-Email-Detector/pkg/ml"
	"github.com/akashahram/Phishing-Email-Detector/pkg/telemetry"
	"github.com/akashahram/Phishing-Email-Detector/pkg/urlintel"
)

// ErrEmptyInput is the only caller-visible validation failure: empty or
// whitespace-only input is rejected before any signal extraction.
var ErrEmptyInput = errors.New("empty input: nothing to analyze")

// AnalyzerConfig wires an Analyzer together.
type AnalyzerConfig struct {
	Scorer    ml.TextScorer
	URLEngine *urlintel.Engine
	Forensics *forensics.Engine
	Policy    Policy
	Tables    *detection.Tables
}

// Analyzer runs the full pipeline: normalize, extract the three signals,
// fuse, and explain. Safe for concurrent use; per-call state is local.
type Analyzer struct {
	scorer    ml.TextScorer
	urlEngine *urlintel.Engine
	forensics *forensics.Engine
	policy    Policy
	tables    *detection.Tables
}

// NewAnalyzer builds an Analyzer. The scorer is required; missing engines
// fall back to offline defaults.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	if cfg.Scorer == nil {
		return nil, errors.New("analyzer requires a text scorer")
	}
	if cfg.Tables == nil {
		cfg.Tables = detection.DefaultTables()
	}
	if cfg.URLEngine == nil {
		cfg.URLEngine = urlintel.NewEngine(urlintel.EngineConfig{Tables: cfg.Tables})
	}
	if cfg.Forensics == nil {
		cfg.Forensics = forensics.NewEngine(cfg.Tables)
	}
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	return &Analyzer{
		scorer:    cfg.Scorer,
		urlEngine: cfg.URLEngine,
		forensics: cfg.Forensics,
		policy:    cfg.Policy,
		tables:    cfg.Tables,
	}, nil
}

// AnalyzeText scores a plain text message. Header forensics is skipped
// since plain text carries no headers.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) (*Verdict, error) {
	clean := mailparse.NormalizeText(text)
	if clean == "" {
		return nil, ErrEmptyInput
	}
	return a.analyze(ctx, clean, nil), nil
}

// AnalyzeEmail scores a raw message (typically a .eml upload). Returns the
// verdict and the normalized text it was computed from.
func (a *Analyzer) AnalyzeEmail(ctx context.Context, raw []byte) (*Verdict, string, error) {
	clean, headers := mailparse.Normalize(raw)
	if clean == "" && headers == nil {
		return nil, "", ErrEmptyInput
	}
	return a.analyze(ctx, clean, headers), clean, nil
}

// analyze runs the three signal extractors and fuses their outputs. It
// never fails: a broken signal degrades to no evidence, and the worst case
// is a low-confidence verdict with sparse findings.
func (a *Analyzer) analyze(ctx context.Context, clean string, headers *mailparse.HeaderView) *Verdict {
	start := time.Now()

	mlScore, err := a.scorer.Score(ctx, clean)
	if err != nil {
		log.Printf("[FUSION] ML scorer failed, proceeding without that signal: %v", err)
		telemetry.ProbeFailures.WithLabelValues("ml").Inc()
		mlScore = 0
	}
	mlScore, keywordMatched := a.policy.ApplyKeywordBoost(clean, mlScore, a.tables)

	urlResult := a.urlEngine.Analyze(ctx, clean)

	forensicsScore := 0
	hasHeaders := false
	var forensicsFindings []detection.Finding
	if forensicsResult := a.forensics.Analyze(headers); forensicsResult != nil {
		forensicsScore = forensicsResult.RiskScore
		forensicsFindings = forensicsResult.Findings
		hasHeaders = true
	}

	// The prediction is decided on the unrounded probability; the 4-decimal
	// rounding below is presentation only, so a published 0.8 can carry
	// prediction 0 when the unrounded value sat just under the threshold.
	probability, prediction := a.policy.Fuse(mlScore, urlResult.RiskScore, forensicsScore, hasHeaders)
	reason := a.policy.Reason(mlScore, urlResult.RiskScore, forensicsScore, keywordMatched, prediction)

	findings := make([]detection.Finding, 0, len(urlResult.Findings)+len(forensicsFindings))
	findings = append(findings, urlResult.Findings...)
	findings = append(findings, forensicsFindings...)

	verdict := &Verdict{
		Prediction:     prediction,
		Probability:    round4(probability),
		MLScore:        round4(mlScore),
		URLRiskScore:   urlResult.RiskScore,
		ForensicsScore: forensicsScore,
		Signals:        ExtractSignals(clean, a.tables),
		Findings:       findings,
		Reason:         reason,
	}

	outcome := "clean"
	if verdict.IsPhishing() {
		outcome = "phishing"
	}
	telemetry.AnalysesTotal.WithLabelValues(outcome).Inc()
	telemetry.AnalysisDuration.Observe(time.Since(start).Seconds())

	return verdict
}
