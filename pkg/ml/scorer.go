package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
)

// TextScorer produces a phishing probability in [0, 1] for normalized
// email text. Implementations must be safe for concurrent use.
type TextScorer interface {
	Score(ctx context.Context, text string) (float64, error)
	IsReady() bool
	Close() error
}

// LinearScorer runs a logistic regression over TF-IDF features. The
// vocabulary, IDF weights, and coefficients come from a versioned JSON
// artifact exported at training time, so inference here is just a sparse
// dot product and a sigmoid.
type LinearScorer struct {
	vocabulary map[string]int
	idf        []float64
	coef       []float64
	intercept  float64
	version    string
}

// linearArtifact is the on-disk representation of a trained model.
type linearArtifact struct {
	Version    string         `json:"version"`
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	Coef       []float64      `json:"coef"`
	Intercept  float64        `json:"intercept"`
}

var tokenPattern = regexp.MustCompile(`\b\w\w+\b`)

// NewLinearScorer loads a model artifact from path. The artifact is
// validated so that a bad deploy fails at startup rather than on the
// first scored message.
func NewLinearScorer(path string) (*LinearScorer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var artifact linearArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", path, err)
	}

	return newLinearScorerFromArtifact(&artifact, path)
}

func newLinearScorerFromArtifact(artifact *linearArtifact, origin string) (*LinearScorer, error) {
	if len(artifact.Vocabulary) == 0 {
		return nil, fmt.Errorf("model artifact %s has an empty vocabulary", origin)
	}
	if len(artifact.IDF) != len(artifact.Vocabulary) || len(artifact.Coef) != len(artifact.Vocabulary) {
		return nil, fmt.Errorf("model artifact %s is inconsistent: vocab=%d idf=%d coef=%d",
			origin, len(artifact.Vocabulary), len(artifact.IDF), len(artifact.Coef))
	}
	for token, idx := range artifact.Vocabulary {
		if idx < 0 || idx >= len(artifact.IDF) {
			return nil, fmt.Errorf("model artifact %s: token %q maps to out-of-range index %d", origin, token, idx)
		}
	}

	return &LinearScorer{
		vocabulary: artifact.Vocabulary,
		idf:        artifact.IDF,
		coef:       artifact.Coef,
		intercept:  artifact.Intercept,
		version:    artifact.Version,
	}, nil
}

// Version returns the artifact version string, if the artifact carried one.
func (s *LinearScorer) Version() string { return s.version }

// IsReady reports whether the scorer can serve requests.
func (s *LinearScorer) IsReady() bool { return s != nil && len(s.vocabulary) > 0 }

// Close is a no-op; the scorer holds no external resources.
func (s *LinearScorer) Close() error { return nil }

// Score computes the phishing probability for text. Tokens are lowercased
// word sequences of two or more characters; counts are weighted by IDF and
// the feature vector is L2-normalized before the logistic layer.
func (s *LinearScorer) Score(_ context.Context, text string) (float64, error) {
	if !s.IsReady() {
		return 0, fmt.Errorf("linear scorer not initialized")
	}

	weights := make(map[int]float64)
	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if idx, ok := s.vocabulary[token]; ok {
			weights[idx] += s.idf[idx]
		}
	}

	var norm float64
	for _, w := range weights {
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
	}

	// Sum in index order so repeated scoring of the same text is
	// bit-identical; map iteration order would reorder the terms.
	indexes := make([]int, 0, len(weights))
	for idx := range weights {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	z := s.intercept
	if norm > 0 {
		for _, idx := range indexes {
			z += s.coef[idx] * (weights[idx] / norm)
		}
	}

	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
