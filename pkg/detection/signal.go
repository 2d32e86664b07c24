// Package detection holds the shared data model of the fusion engine:
// findings, per-signal results, and the injected detection tables.
package detection

// Severity grades a single finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category identifies which class of check produced a finding.
type Category string

const (
	// URL intelligence categories
	CategoryPhishTankVerified Category = "phishtank_verified"
	CategoryURLStructure      Category = "url_structure"
	CategoryDomain            Category = "domain"
	CategoryTyposquatting     Category = "typosquatting"
	CategoryRedirects         Category = "redirects"

	// Header forensics categories
	CategoryAuthentication     Category = "authentication"
	CategorySenderVerification Category = "sender_verification"
	CategoryBrandImpersonation Category = "brand_impersonation"
	CategoryRelayAnalysis      Category = "relay_analysis"
	CategoryHeaders            Category = "headers"
)

// Finding is a single piece of evidence. Immutable once created;
// accumulated in detection order, which is significant: the reason string
// and the findings list of a Verdict must be reproducible bit for bit.
type Finding struct {
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

// SignalResult is the output of one detection layer (URL intelligence or
// header forensics): an accumulated risk score in [0,100] plus the ordered
// findings that justify it.
type SignalResult struct {
	RiskScore  int       `json:"risk_score"`
	Findings   []Finding `json:"findings"`
	IsHighRisk bool      `json:"is_high_risk"`

	// raw is the pre-clamp accumulated score; RiskScore is the clamped view
	raw int
}

// NewSignalResult returns an empty result ready to accumulate findings.
func NewSignalResult() *SignalResult {
	return &SignalResult{}
}

// SetScore overrides the accumulated score, for aggregations that combine
// per-item results under a different rule than summation.
func (r *SignalResult) SetScore(score int) {
	if score < 0 {
		score = 0
	}
	r.raw = score
	r.RiskScore = min(100, score)
}

// Add accumulates points with a finding. Scores only ever grow; the clamp
// to 100 is applied on read so later findings still record their evidence.
func (r *SignalResult) Add(points int, severity Severity, category Category, message string) {
	if points < 0 {
		points = 0
	}
	r.raw += points
	r.RiskScore = min(100, r.raw)
	r.Findings = append(r.Findings, Finding{
		Severity: severity,
		Category: category,
		Message:  message,
	})
}

// Merge folds another result into this one: scores accumulate (clamped),
// findings concatenate in order.
func (r *SignalResult) Merge(other *SignalResult) {
	if other == nil {
		return
	}
	r.raw += other.raw
	r.RiskScore = min(100, r.raw)
	r.Findings = append(r.Findings, other.Findings...)
}

// Finalize freezes the high-risk flag against the layer's threshold.
// Call it once all checks for the layer have run.
func (r *SignalResult) Finalize(threshold int) *SignalResult {
	r.IsHighRisk = r.RiskScore >= threshold
	return r
}
