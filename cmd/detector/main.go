package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akashahram/Phishing-Email-Detector/pkg/config"
	"github.com/akashahram/Phishing-Email-Detector/pkg/detection"
	"github.com/akashahram/Phishing-Email-Detector/pkg/forensics"
	"github.com/akashahram/Phishing-Email-Detector/pkg/fusion"
	"github.com/akashahram/Phishing-Email-Detector/pkg/httputil"
	"github.com/akashahram/Phishing-Email-Detector/pkg/ml"
	"github.com/akashahram/Phishing-Email-Detector/pkg/phishtank"
	"github.com/akashahram/Phishing-Email-Detector/pkg/urlintel"
)

const Version = "0.1.0"

// Detector bundles the analyzer with the long-lived components the health
// endpoint reports on.
type Detector struct {
	analyzer *fusion.Analyzer
	scorer   ml.TextScorer
	oracle   *phishtank.Client
	config   *config.Config
}

// NewDetector wires the full pipeline from configuration. A missing or
// corrupt classifier artifact is fatal: a detector that cannot score text
// has no business starting.
func NewDetector(cfg *config.Config) *Detector {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	cfg.MustValidate()

	tables, err := detection.LoadTables(cfg.TablesPath)
	if err != nil {
		log.Fatalf("[STARTUP] FATAL: detection tables: %v", err)
	}

	scorer := buildScorer(cfg)

	var oracle *phishtank.Client
	if cfg.PhishTankEnabled {
		oracle = buildOracle(cfg)
	} else {
		log.Println("○ PhishTank lookups disabled")
	}

	var prober *urlintel.Prober
	if cfg.EnableProbes {
		prober = urlintel.NewProber(httputil.ProbeClientWithTimeout(cfg.ProbeTimeout), nil)
		log.Println("✓ Network probes enabled (redirects, DNS)")
	} else {
		log.Println("○ Network probes disabled")
	}

	urlEngine := urlintel.NewEngine(urlintel.EngineConfig{
		Tables:           tables,
		Oracle:           oracleOrNil(oracle),
		Prober:           prober,
		MaxURLs:          cfg.MaxURLs,
		MaxOracleLookups: cfg.MaxOracleLookups,
		PhaseTimeout:     cfg.URLPhaseTimeout,
		Concurrency:      cfg.MaxURLs,
	})

	policy := fusion.DefaultPolicy()
	policy.Threshold = cfg.DecisionThreshold

	analyzer, err := fusion.NewAnalyzer(fusion.AnalyzerConfig{
		Scorer:    scorer,
		URLEngine: urlEngine,
		Forensics: forensics.NewEngine(tables),
		Policy:    policy,
		Tables:    tables,
	})
	if err != nil {
		log.Fatalf("[STARTUP] FATAL: %v", err)
	}

	return &Detector{analyzer: analyzer, scorer: scorer, oracle: oracle, config: cfg}
}

// buildScorer prefers the transformer backend when one is configured and
// loads, otherwise the linear artifact. The linear path is fatal on
// failure; it is the baseline every deployment must have.
func buildScorer(cfg *config.Config) ml.TextScorer {
	if cfg.OnnxModelPath != "" {
		hugot := ml.NewHugotScorerWithFallback(ml.HugotConfig{
			ModelPath:       cfg.OnnxModelPath,
			OnnxLibraryPath: cfg.OnnxLibraryPath,
		})
		if hugot.IsReady() {
			log.Println("✓ ML scoring via transformer backend (hugot/ONNX)")
			return hugot
		}
		log.Println("○ Transformer backend unavailable, falling back to linear artifact")
	}

	scorer, err := ml.NewLinearScorer(cfg.ModelPath)
	if err != nil {
		log.Fatalf("[STARTUP] FATAL: classifier artifact: %v", err)
	}
	log.Printf("✓ ML scoring via linear artifact (%s, version %s)", cfg.ModelPath, scorer.Version())
	return scorer
}

func buildOracle(cfg *config.Config) *phishtank.Client {
	var cache phishtank.Cache
	if cfg.RedisURL != "" {
		redisCache, err := phishtank.NewRedisCacheFromURL(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Fatalf("[STARTUP] FATAL: redis cache: %v", err)
		}
		if err := redisCache.Ping(context.Background()); err != nil {
			log.Fatalf("[STARTUP] FATAL: redis unreachable: %v", err)
		}
		cache = redisCache
		log.Println("✓ PhishTank cache backed by Redis")
	} else {
		cache = phishtank.NewMemoryCache(cfg.CacheTTL, nil)
		log.Println("✓ PhishTank cache in-process")
	}

	oracle, err := phishtank.NewClient(phishtank.ClientConfig{
		Endpoint:   cfg.PhishTankURL,
		APIKey:     cfg.PhishTankAPIKey,
		Throttle:   cfg.PhishTankThrottle,
		HTTPClient: httputil.IntelClientWithTimeout(cfg.PhishTankTimeout),
		Cache:      cache,
	})
	if err != nil {
		log.Fatalf("[STARTUP] FATAL: phishtank client: %v", err)
	}
	if cfg.PhishTankAPIKey != "" {
		log.Println("✓ PhishTank lookups enabled (keyed tier)")
	} else {
		log.Println("✓ PhishTank lookups enabled (anonymous tier, throttled)")
	}
	return oracle
}

// oracleOrNil keeps a nil *Client from becoming a non-nil interface.
func oracleOrNil(oracle *phishtank.Client) urlintel.Oracle {
	if oracle == nil {
		return nil
	}
	return oracle
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cfg := config.NewDefaultConfig()
		if len(os.Args) > 2 {
			cfg.Port = os.Args[2]
		}
		runHTTPServer(cfg)
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: detector scan <text>")
			os.Exit(1)
		}
		runCLIScan(strings.Join(os.Args[2:], " "))
	case "scan-eml":
		if len(os.Args) < 3 {
			fmt.Println("Usage: detector scan-eml <file.eml>")
			os.Exit(1)
		}
		runCLIScanEML(os.Args[2])
	case "version":
		fmt.Printf("Phishing Email Detector v%s\n", Version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Phishing Email Detector v%s\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  detector serve [port]       Start HTTP server (default: 5000)")
	fmt.Println("  detector scan <text>        Score a text snippet")
	fmt.Println("  detector scan-eml <file>    Score a raw .eml message")
	fmt.Println("  detector version            Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  detector serve 8080")
	fmt.Println("  detector scan \"Please verify your account at http://paypa1.com\"")
	fmt.Println("  detector scan-eml suspicious.eml")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  PHISHDETECT_MODEL_PATH   Path to the classifier artifact")
	fmt.Println("  PHISHTANK_API_KEY        PhishTank API key (optional)")
	fmt.Println("  PHISHDETECT_REDIS_URL    Redis URL for a shared verdict cache")
	fmt.Println("  PHISHDETECT_TABLES_PATH  YAML overrides for detection tables")
}

// emlResponse is the /scan_eml payload: the verdict plus the normalized
// text it was computed from.
type emlResponse struct {
	*fusion.Verdict
	CleanedText string `json:"cleaned_text"`
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

func runHTTPServer(cfg *config.Config) {
	detector := NewDetector(cfg)

	app := fiber.New(fiber.Config{
		AppName: "Phishing Email Detector",
	})

	// Tag every request for log correlation.
	app.Use(func(c fiber.Ctx) error {
		requestID := uuid.NewString()
		c.Set("X-Request-ID", requestID)
		return c.Next()
	})

	app.Get("/health", func(c fiber.Ctx) error {
		health := fiber.Map{
			"status":      "ok",
			"version":     Version,
			"model_ready": detector.scorer.IsReady(),
			"phishtank":   detector.oracle != nil,
			"probes":      detector.config.EnableProbes,
		}
		if detector.oracle != nil {
			health["cache"] = detector.oracle.Stats()
		}
		return c.JSON(health)
	})

	app.Post("/predict", func(c fiber.Ctx) error {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}

		verdict, err := detector.analyzer.AnalyzeText(c.Context(), req.Text)
		if errors.Is(err, fusion.ErrEmptyInput) {
			return c.Status(400).JSON(fiber.Map{"error": "No text provided"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "analysis failed"})
		}
		return c.JSON(verdict)
	})

	app.Post("/scan_eml", func(c fiber.Ctx) error {
		raw, err := readUpload(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "No file uploaded"})
		}

		verdict, cleaned, err := detector.analyzer.AnalyzeEmail(c.Context(), raw)
		if errors.Is(err, fusion.ErrEmptyInput) {
			return c.Status(400).JSON(fiber.Map{"error": "No file uploaded"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "analysis failed"})
		}
		return c.JSON(emlResponse{Verdict: verdict, CleanedText: cleaned})
	})

	go serveMetrics(cfg.MetricsPort)

	log.Printf("Phishing detector HTTP server starting on :%s", cfg.Port)
	log.Printf("Endpoints:")
	log.Printf("  GET  /health     - Component readiness and cache stats")
	log.Printf("  POST /predict    - Score a JSON {\"text\": ...} payload")
	log.Printf("  POST /scan_eml   - Score an uploaded raw .eml message")

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}

// readUpload accepts either a multipart "file" field or a raw request body.
func readUpload(c fiber.Ctx) ([]byte, error) {
	if fileHeader, err := c.FormFile("file"); err == nil {
		f, err := fileHeader.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, httputil.MaxResponseSize))
	}

	body := c.Body()
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	return body, nil
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("Metrics listening on :%s/metrics", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Printf("Metrics listener stopped: %v", err)
	}
}

// ============================================================================
// CLI Mode
// ============================================================================

func runCLIScan(text string) {
	detector := NewDetector(config.NewDefaultConfig())

	verdict, err := detector.analyzer.AnalyzeText(context.Background(), text)
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}
	printJSON(verdict)
}

func runCLIScanEML(path string) {
	detector := NewDetector(config.NewDefaultConfig())

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}

	verdict, cleaned, err := detector.analyzer.AnalyzeEmail(context.Background(), raw)
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}
	printJSON(emlResponse{Verdict: verdict, CleanedText: cleaned})
}

func printJSON(v any) {
	output, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(output))
}
