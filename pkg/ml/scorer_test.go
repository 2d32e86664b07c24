package ml

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeTestArtifact(t *testing.T, artifact linearArtifact) string {
	t.Helper()
	raw, err := json.Marshal(artifact)
	if err != nil {
		t.Fatalf("marshal artifact: %v", err)
	}
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func testArtifact() linearArtifact {
	return linearArtifact{
		Version:    "test-1",
		Vocabulary: map[string]int{"verify": 0, "account": 1, "hello": 2},
		IDF:        []float64{2.0, 1.5, 1.0},
		Coef:       []float64{3.0, 2.0, -1.0},
		Intercept:  -1.0,
	}
}

func TestLinearScorerScore(t *testing.T) {
	scorer, err := NewLinearScorer(writeTestArtifact(t, testArtifact()))
	if err != nil {
		t.Fatalf("NewLinearScorer: %v", err)
	}
	if !scorer.IsReady() {
		t.Fatal("scorer should be ready after load")
	}
	if scorer.Version() != "test-1" {
		t.Errorf("Version = %q", scorer.Version())
	}

	tests := []struct {
		name string
		text string
		want float64
	}{
		// tf-idf weights 2.0 and 1.5, L2 norm 2.5, z = -1 + 3*0.8 + 2*0.6
		{"phishing vocabulary", "verify your account", 0.9308615796566533},
		// single benign token, z = -1 - 1
		{"benign vocabulary", "hello", 0.11920292202211757},
		// nothing in vocabulary, intercept only
		{"out of vocabulary", "completely unrelated words", 0.2689414213699951},
		{"empty text", "", 0.2689414213699951},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scorer.Score(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Score(%q) = %v, want %v", tt.text, got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("Score(%q) = %v, out of [0,1]", tt.text, got)
			}
		})
	}
}

func TestLinearScorerCaseInsensitive(t *testing.T) {
	scorer, err := NewLinearScorer(writeTestArtifact(t, testArtifact()))
	if err != nil {
		t.Fatalf("NewLinearScorer: %v", err)
	}

	lower, _ := scorer.Score(context.Background(), "verify account")
	upper, _ := scorer.Score(context.Background(), "VERIFY Account")
	if lower != upper {
		t.Errorf("case changed the score: %v vs %v", lower, upper)
	}
}

func TestLinearScorerDeterministic(t *testing.T) {
	scorer, err := NewLinearScorer(writeTestArtifact(t, testArtifact()))
	if err != nil {
		t.Fatalf("NewLinearScorer: %v", err)
	}

	const text = "please verify your account hello"
	first, _ := scorer.Score(context.Background(), text)
	for i := 0; i < 10; i++ {
		again, _ := scorer.Score(context.Background(), text)
		if again != first {
			t.Fatalf("score drifted on repeat %d: %v vs %v", i, again, first)
		}
	}
}

func TestNewLinearScorerRejectsBadArtifacts(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := NewLinearScorer(filepath.Join(t.TempDir(), "absent.json")); err == nil {
			t.Error("expected error for missing artifact")
		}
	})

	t.Run("empty vocabulary", func(t *testing.T) {
		artifact := testArtifact()
		artifact.Vocabulary = map[string]int{}
		artifact.IDF = nil
		artifact.Coef = nil
		if _, err := NewLinearScorer(writeTestArtifact(t, artifact)); err == nil {
			t.Error("expected error for empty vocabulary")
		}
	})

	t.Run("mismatched lengths", func(t *testing.T) {
		artifact := testArtifact()
		artifact.IDF = artifact.IDF[:2]
		if _, err := NewLinearScorer(writeTestArtifact(t, artifact)); err == nil {
			t.Error("expected error for idf/vocab length mismatch")
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		artifact := testArtifact()
		artifact.Vocabulary["hello"] = 99
		if _, err := NewLinearScorer(writeTestArtifact(t, artifact)); err == nil {
			t.Error("expected error for out-of-range vocabulary index")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewLinearScorer(path); err == nil {
			t.Error("expected error for malformed artifact")
		}
	})
}

func TestHugotScorerNotReady(t *testing.T) {
	scorer := NewHugotScorerWithFallback(HugotConfig{ModelPath: filepath.Join(t.TempDir(), "absent")})
	if scorer.IsReady() {
		t.Fatal("scorer without a model should not be ready")
	}
	if _, err := scorer.Score(context.Background(), "anything"); err == nil {
		t.Error("Score on a degraded scorer should error")
	}
	if err := scorer.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestIsPhishingLabel(t *testing.T) {
	for _, label := range []string{"phishing", "PHISHING", "spam", "SPAM", "LABEL_1"} {
		if !isPhishingLabel(label) {
			t.Errorf("isPhishingLabel(%q) = false", label)
		}
	}
	for _, label := range []string{"ham", "legitimate", "LABEL_0", "benign"} {
		if isPhishingLabel(label) {
			t.Errorf("isPhishingLabel(%q) = true", label)
		}
	}
}
