// Package telemetry exposes Prometheus metrics for the detection engine.
// Metrics are registered at package load; serve them with promhttp.Handler().
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AnalysesTotal counts completed analyses by verdict ("phishing"/"clean").
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "phishdetect", Subsystem: "engine", Name: "analyses_total", Help: "Total number of completed analyses by verdict."},
		[]string{"verdict"},
	)

	// AnalysisDuration tracks end-to-end analysis latency.
	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "phishdetect", Subsystem: "engine", Name: "analysis_duration_seconds",
			Help:    "End-to-end analysis latency.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	// ProbeFailures counts checks degraded to no-signal, by kind
	// ("redirect", "dns", "ml").
	ProbeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "phishdetect", Subsystem: "urlintel", Name: "probe_failures_total", Help: "Network checks degraded to no-signal, by probe kind."},
		[]string{"probe"},
	)

	// OracleLookups counts PhishTank lookups by outcome ("cache_hit", "ok", "error").
	OracleLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "phishdetect", Subsystem: "phishtank", Name: "lookups_total", Help: "PhishTank API lookups by outcome."},
		[]string{"outcome"},
	)

	// CacheHits and CacheMisses track the PhishTank record cache.
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "phishdetect", Subsystem: "phishtank", Name: "cache_hits_total", Help: "PhishTank cache hits."},
	)
	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "phishdetect", Subsystem: "phishtank", Name: "cache_misses_total", Help: "PhishTank cache misses (including expired records)."},
	)
)

func init() {
	_ = prometheus.Register(AnalysesTotal)
	_ = prometheus.Register(AnalysisDuration)
	_ = prometheus.Register(ProbeFailures)
	_ = prometheus.Register(OracleLookups)
	_ = prometheus.Register(CacheHits)
	_ = prometheus.Register(CacheMisses)
}
