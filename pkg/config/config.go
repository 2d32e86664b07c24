package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds global settings for the phishing detection engine.
// All settings can be configured via environment variables or programmatically.
type Config struct {
	// === Classifier Artifact ===
	// The engine refuses to start without a loadable artifact.
	ModelPath string // Path to the versioned classifier artifact (JSON vectorizer + linear model)

	// === ONNX Backend (optional) ===
	// When set, the transformer backend is used instead of the linear artifact.
	OnnxModelPath   string // Path to an ONNX text-classification model directory
	OnnxLibraryPath string // Path to libonnxruntime (empty = auto-detect)

	// === Decision Thresholds ===
	DecisionThreshold float64 // Final probability at or above this = phishing (default: 0.80)

	// === URL Intelligence ===
	MaxURLs          int           // Maximum URLs analyzed per message (default: 10)
	MaxOracleLookups int           // Maximum PhishTank lookups per message (default: 5)
	ProbeTimeout     time.Duration // Per-operation timeout for redirect probes (default: 1s)
	URLPhaseTimeout  time.Duration // Shared deadline budget for the whole URL phase (default: 4s)
	EnableProbes     bool          // Whether network probes (redirects, DNS) run at all

	// === PhishTank ===
	PhishTankEnabled  bool          // Whether PhishTank lookups are performed (default: true)
	PhishTankURL      string        // PhishTank checkurl endpoint
	PhishTankAPIKey   string        // Optional API key; absent = anonymous tier with self-throttle
	PhishTankTimeout  time.Duration // HTTP timeout for PhishTank calls (default: 5s)
	PhishTankThrottle time.Duration // Minimum spacing between anonymous calls (default: 500ms)
	CacheTTL          time.Duration // Lifetime of cached PhishTank records (default: 24h)
	RedisURL          string        // Redis URL for a shared cache; empty = in-process cache

	// === Detection Tables ===
	TablesPath string // Optional YAML file overriding brand/TLD/keyword tables

	// === Server ===
	Port        string // HTTP port for serve mode (default: 5000)
	MetricsPort string // Prometheus metrics port (default: 9090)
}

// NewDefaultConfig creates a Config with sensible defaults.
// All settings can be overridden via environment variables.
func NewDefaultConfig() *Config {
	return &Config{
		ModelPath:       GetEnv("PHISHDETECT_MODEL_PATH", "./models/phishing_model.json"),
		OnnxModelPath:   GetEnv("PHISHDETECT_ONNX_MODEL_PATH", ""),
		OnnxLibraryPath: GetEnv("PHISHDETECT_ONNX_LIBRARY_PATH", ""),

		DecisionThreshold: GetEnvFloat("PHISHDETECT_THRESHOLD", 0.80),

		MaxURLs:          GetEnvInt("PHISHDETECT_MAX_URLS", 10),
		MaxOracleLookups: GetEnvInt("PHISHDETECT_MAX_ORACLE_LOOKUPS", 5),
		ProbeTimeout:     GetEnvDuration("PHISHDETECT_PROBE_TIMEOUT", time.Second),
		URLPhaseTimeout:  GetEnvDuration("PHISHDETECT_URL_PHASE_TIMEOUT", 4*time.Second),
		EnableProbes:     GetEnvBool("PHISHDETECT_ENABLE_PROBES", true),

		PhishTankEnabled:  GetEnvBool("PHISHDETECT_PHISHTANK", true),
		PhishTankURL:      GetEnv("PHISHDETECT_PHISHTANK_URL", "https://checkurl.phishtank.com/checkurl/"),
		PhishTankAPIKey:   GetEnv("PHISHTANK_API_KEY", ""),
		PhishTankTimeout:  GetEnvDuration("PHISHDETECT_PHISHTANK_TIMEOUT", 5*time.Second),
		PhishTankThrottle: GetEnvDuration("PHISHDETECT_PHISHTANK_THROTTLE", 500*time.Millisecond),
		CacheTTL:          GetEnvDuration("PHISHDETECT_CACHE_TTL", 24*time.Hour),
		RedisURL:          GetEnv("PHISHDETECT_REDIS_URL", ""),

		TablesPath: GetEnv("PHISHDETECT_TABLES_PATH", ""),

		Port:        GetEnv("PHISHDETECT_PORT", "5000"),
		MetricsPort: GetEnv("PHISHDETECT_METRICS_PORT", "9090"),
	}
}

// NewOfflineConfig creates a Config with every network-dependent check
// disabled. Use it for air-gapped deployments or deterministic batch scoring:
// only the ML classifier, local URL checks, and header forensics run.
func NewOfflineConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.EnableProbes = false
	cfg.PhishTankEnabled = false
	return cfg
}

// NewStrictConfig lowers the decision threshold for deployments that prefer
// false positives over missed phish.
func NewStrictConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.DecisionThreshold = 0.70
	return cfg
}

// Validate checks that the configuration is internally consistent.
// The model artifact itself is not checked here; loading it is the ml
// package's job, and failure there is fatal at startup.
func (c *Config) Validate() error {
	var problems []string

	if c.DecisionThreshold <= 0 || c.DecisionThreshold > 0.99 {
		problems = append(problems, fmt.Sprintf("PHISHDETECT_THRESHOLD must be in (0, 0.99], got %.2f", c.DecisionThreshold))
	}
	if c.ModelPath == "" && c.OnnxModelPath == "" {
		problems = append(problems, "PHISHDETECT_MODEL_PATH or PHISHDETECT_ONNX_MODEL_PATH must be set")
	}
	if c.MaxURLs <= 0 {
		problems = append(problems, "PHISHDETECT_MAX_URLS must be positive")
	}
	if c.MaxOracleLookups < 0 {
		problems = append(problems, "PHISHDETECT_MAX_ORACLE_LOOKUPS must not be negative")
	}
	if c.ProbeTimeout <= 0 || c.URLPhaseTimeout <= 0 {
		problems = append(problems, "probe and URL phase timeouts must be positive")
	}
	if c.PhishTankEnabled && c.PhishTankURL == "" {
		problems = append(problems, "PHISHDETECT_PHISHTANK_URL must be set when PhishTank is enabled")
	}
	if c.CacheTTL <= 0 {
		problems = append(problems, "PHISHDETECT_CACHE_TTL must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MustValidate calls Validate and fatally exits if validation fails.
// Call this at startup before constructing the engine.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Fatalf("[STARTUP] FATAL: %v", err)
	}
	log.Println("[STARTUP] Configuration validated successfully")
}

// Helper functions for environment variable parsing.
// These are exported for use by other packages.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvDuration returns the duration value of an environment variable or a default value.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
