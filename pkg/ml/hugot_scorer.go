package ml

// hugot_scorer.go - Transformer-based text scoring via Hugot/ONNX
//
// Optional alternative to the linear scorer for deployments that ship a
// fine-tuned ONNX classification model. Inference runs fully local.
//
// Build:
// - Standard: go build (pure Go backend, slower but no native dependencies)
// - With ORT: go build -tags ORT (ONNX Runtime, faster)

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"
)

// HugotConfig configures the transformer scorer.
type HugotConfig struct {
	// ModelPath is the local path to the ONNX model directory.
	ModelPath string

	// OnnxLibraryPath is the directory containing libonnxruntime.
	// Empty means fall back to the pure Go backend.
	OnnxLibraryPath string

	// Timeout bounds a single inference call.
	Timeout time.Duration
}

// HugotScorer classifies email text with a transformer model. It implements
// TextScorer and degrades to not-ready if the ONNX session cannot be built.
type HugotScorer struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
	mu       sync.RWMutex
	config   HugotConfig
	ready    bool
}

// NewHugotScorer creates a transformer scorer from cfg. Initialization
// failures are returned to the caller; use NewHugotScorerWithFallback when
// degraded startup is acceptable.
func NewHugotScorer(cfg HugotConfig) (*HugotScorer, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("no model path specified")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model path %s not accessible: %w", cfg.ModelPath, err)
	}

	scorer := &HugotScorer{config: cfg}
	if err := scorer.initialize(); err != nil {
		return nil, fmt.Errorf("hugot initialization failed: %w", err)
	}
	return scorer, nil
}

// NewHugotScorerWithFallback returns a scorer even when initialization
// fails; the result reports IsReady() == false and callers should fall back
// to another scorer.
func NewHugotScorerWithFallback(cfg HugotConfig) *HugotScorer {
	scorer, err := NewHugotScorer(cfg)
	if err != nil {
		log.Printf("[ML] WARNING: transformer scorer unavailable, degraded startup: %v", err)
		return &HugotScorer{config: cfg}
	}
	return scorer
}

func (h *HugotScorer) initialize() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, err := h.createSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	h.session = session

	config := hugot.TextClassificationConfig{
		ModelPath: h.config.ModelPath,
		Name:      "phishing-text-classifier",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		_ = h.session.Destroy()
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	h.pipeline = pipeline
	h.ready = true
	log.Printf("[ML] transformer scorer initialized (model: %s)", h.config.ModelPath)
	return nil
}

func (h *HugotScorer) createSession() (*hugot.Session, error) {
	if h.config.OnnxLibraryPath != "" {
		session, err := hugot.NewORTSession(
			options.WithOnnxLibraryPath(h.config.OnnxLibraryPath),
		)
		if err == nil {
			log.Printf("[ML] using ONNX Runtime backend")
			return session, nil
		}
		log.Printf("[ML] ONNX Runtime unavailable, falling back to Go backend: %v", err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Go session: %w", err)
	}
	return session, nil
}

// IsReady reports whether the model loaded and inference can run.
func (h *HugotScorer) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// isPhishingLabel maps model label conventions onto the positive class.
// Fine-tuned email models disagree on naming, so accept the common ones.
func isPhishingLabel(label string) bool {
	switch label {
	case "phishing", "PHISHING", "spam", "SPAM", "LABEL_1":
		return true
	default:
		return false
	}
}

// Score runs the classifier and folds the label back into a phishing
// probability: the model confidence when the positive class wins, its
// complement otherwise.
func (h *HugotScorer) Score(ctx context.Context, text string) (float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.ready || h.pipeline == nil {
		return 0, fmt.Errorf("transformer scorer not ready")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result, err := h.pipeline.RunPipeline([]string{text})
	if err != nil {
		return 0, fmt.Errorf("classification failed: %w", err)
	}
	if len(result.ClassificationOutputs) == 0 || len(result.ClassificationOutputs[0]) == 0 {
		return 0, fmt.Errorf("classifier returned no output")
	}

	out := result.ClassificationOutputs[0][0]
	confidence := float64(out.Score)
	if isPhishingLabel(out.Label) {
		return confidence, nil
	}
	return 1.0 - confidence, nil
}

// Close releases the ONNX session.
func (h *HugotScorer) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ready = false
	if h.session != nil {
		if err := h.session.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}
	return nil
}
