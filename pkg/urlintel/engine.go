package urlintel

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/akashahram/Phishing-Email-Detector/pkg/detection"
	"github.com/akashahram/Phishing-Email-Detector/pkg/httputil"
	"github.com/akashahram/Phishing-Email-Detector/pkg/phishtank"
)

// HighRiskThreshold is the aggregate score at or above which the URL
// signal marks the message high risk.
const HighRiskThreshold = 50

// urlPattern matches scheme://... substrings, stopping at whitespace and
// the quote or bracket characters that commonly delimit URLs in email text.
var urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s'"<>\[\]{}]+`)

// Oracle answers verified-phishing lookups. Implemented by phishtank.Client.
type Oracle interface {
	Check(ctx context.Context, rawURL string) *phishtank.Record
}

// EngineConfig configures a URL intelligence engine.
type EngineConfig struct {
	Tables *detection.Tables

	// Oracle is the verified-phishing lookup; nil disables that check.
	Oracle Oracle

	// Prober runs the network checks; nil disables probing entirely.
	Prober *Prober

	// MaxURLs caps how many extracted URLs are analyzed per message.
	MaxURLs int

	// MaxOracleLookups caps oracle lookups per message; URLs beyond the
	// cap skip only the oracle check.
	MaxOracleLookups int

	// PhaseTimeout bounds the whole URL analysis phase of one message.
	PhaseTimeout time.Duration

	// Concurrency bounds simultaneous per-URL goroutines.
	Concurrency int
}

// Engine extracts and scores URLs from message text. One maliciously
// crafted URL is enough to flag a message, so the aggregate risk is the
// maximum single-URL score while findings from every URL are kept.
type Engine struct {
	tables           *detection.Tables
	oracle           Oracle
	prober           *Prober
	sem              *httputil.Semaphore
	maxURLs          int
	maxOracleLookups int
	phaseTimeout     time.Duration
}

// NewEngine builds an Engine from cfg, applying defaults.
func NewEngine(cfg EngineConfig) *Engine {
	tables := cfg.Tables
	if tables == nil {
		tables = detection.DefaultTables()
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = 10
	}
	if cfg.MaxOracleLookups <= 0 {
		cfg.MaxOracleLookups = 5
	}
	if cfg.PhaseTimeout <= 0 {
		cfg.PhaseTimeout = 4 * time.Second
	}
	return &Engine{
		tables:           tables,
		oracle:           cfg.Oracle,
		prober:           cfg.Prober,
		sem:              httputil.NewSemaphore(cfg.Concurrency),
		maxURLs:          cfg.MaxURLs,
		maxOracleLookups: cfg.MaxOracleLookups,
		phaseTimeout:     cfg.PhaseTimeout,
	}
}

// ExtractURLs returns the URL-looking substrings of text in order of
// appearance.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// Analyze extracts URLs from text and scores them. See AnalyzeURLs.
func (e *Engine) Analyze(ctx context.Context, text string) *detection.SignalResult {
	return e.AnalyzeURLs(ctx, ExtractURLs(text))
}

// AnalyzeURLs scores up to the first MaxURLs entries of urls concurrently,
// under a shared phase deadline. Findings keep URL order regardless of
// completion order, so identical input yields identical output.
func (e *Engine) AnalyzeURLs(ctx context.Context, urls []string) *detection.SignalResult {
	aggregate := detection.NewSignalResult()
	if len(urls) == 0 {
		return aggregate.Finalize(HighRiskThreshold)
	}
	if len(urls) > e.maxURLs {
		urls = urls[:e.maxURLs]
	}

	ctx, cancel := context.WithTimeout(ctx, e.phaseTimeout)
	defer cancel()

	results := make([]*detection.SignalResult, len(urls))
	var wg sync.WaitGroup
	for i, rawURL := range urls {
		wg.Add(1)
		// The oracle budget goes to the first URLs in message order.
		allowOracle := i < e.maxOracleLookups
		go func(i int, rawURL string, allowOracle bool) {
			defer wg.Done()
			if err := e.sem.Acquire(ctx); err != nil {
				// Phase deadline hit while queued; this URL gets no signal.
				return
			}
			defer e.sem.Release()
			results[i] = e.analyzeURL(ctx, rawURL, allowOracle)
		}(i, rawURL, allowOracle)
	}
	wg.Wait()

	maxScore := 0
	for _, result := range results {
		if result == nil {
			continue
		}
		if result.RiskScore > maxScore {
			maxScore = result.RiskScore
		}
		aggregate.Merge(result)
	}
	aggregate.SetScore(maxScore)
	return aggregate.Finalize(HighRiskThreshold)
}

// analyzeURL runs every check against one URL. The oracle goes first since
// a verified hit is the most authoritative signal.
func (e *Engine) analyzeURL(ctx context.Context, rawURL string, allowOracle bool) *detection.SignalResult {
	result := detection.NewSignalResult()
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return result
	}

	host := hostOf(rawURL)
	if host == "" {
		// Schemeless or unparseable; fall back to the leading segment.
		host = strings.SplitN(rawURL, "/", 2)[0]
	}

	if e.oracle != nil && allowOracle {
		e.checkOracle(ctx, rawURL, result)
	}
	checkIPAddress(host, result)
	checkSuspiciousTLD(host, e.tables, result)
	checkTyposquatting(host, e.tables, result)
	checkURLLength(rawURL, result)
	if parsed, err := url.Parse(rawURL); err == nil {
		checkSuspiciousPatterns(rawURL, parsed, e.tables, result)
	}
	if e.prober != nil {
		e.prober.checkRedirects(ctx, rawURL, result)
		e.prober.checkDNS(ctx, host, result)
	}
	return result
}

func (e *Engine) checkOracle(ctx context.Context, rawURL string, result *detection.SignalResult) {
	record := e.oracle.Check(ctx, rawURL)
	if !record.IsPhish() {
		return
	}
	phishID := record.PhishID
	if phishID == "" {
		phishID = "N/A"
	}
	result.Add(100, detection.SeverityCritical, detection.CategoryPhishTankVerified,
		fmt.Sprintf("URL verified as phishing by PhishTank (ID: %s)", phishID))
}
