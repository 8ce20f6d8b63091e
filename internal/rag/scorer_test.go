package rag

import (
	"math"
	"testing"
)

func TestCosineSimilarityOrthogonal(t *testing.T) {
	got := CosineSimilarity([]float32{1, 0, 0}, []float32{0, 1, 0})
	if got != 0 {
		t.Fatalf("expected 0 for orthogonal vectors, got %f", got)
	}
}

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5}
	got := CosineSimilarity(v, v)
	if math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected 1 for identical vectors, got %f", got)
	}
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	if got := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("expected 0 for zero-norm input, got %f", got)
	}
	if got := CosineSimilarity([]float32{1, 2, 3}, []float32{0, 0, 0}); got != 0 {
		t.Fatalf("expected 0 for zero-norm input, got %f", got)
	}
}

func TestCosineSimilarityMismatchedAndEmpty(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("expected 0 for mismatched lengths, got %f", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Fatalf("expected 0 for empty vectors, got %f", got)
	}
}

func TestCosineSimilarityClampsOpposite(t *testing.T) {
	got := CosineSimilarity([]float32{1, 1}, []float32{-1, -1})
	if got != 0 {
		t.Fatalf("expected opposite vectors clamped to 0, got %f", got)
	}
}

// unitAt returns a 2-d unit vector whose cosine with (1,0) is sim.
func unitAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func TestScoreAverageAccuracy(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ID: "a", Content: "a", Embedding: unitAt(0.9)},
		{ID: "b", Content: "b", Embedding: unitAt(0.8)},
		{ID: "c", Content: "c", Embedding: unitAt(0.6)},
	}

	result := NewScorer(0.3).Score(query, candidates)

	if len(result.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(result.Sources))
	}
	if math.Round(result.AverageAccuracy) != 77 {
		t.Fatalf("expected average accuracy ~77, got %f", result.AverageAccuracy)
	}
	if result.Sources[0].ID != "a" || result.Sources[2].ID != "c" {
		t.Fatal("expected candidate order to be preserved")
	}
	if math.Abs(result.Sources[1].Similarity-0.8) > 1e-6 {
		t.Fatalf("expected similarity 0.8 on second source, got %f", result.Sources[1].Similarity)
	}
}

func TestScoreNoneAboveThreshold(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ID: "a", Embedding: unitAt(0.1)},
		{ID: "b", Embedding: unitAt(0.2)},
	}

	result := NewScorer(0.3).Score(query, candidates)

	if len(result.Sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(result.Sources))
	}
	if result.AverageAccuracy != 0 {
		t.Fatalf("expected 0 accuracy, got %f", result.AverageAccuracy)
	}
}

func TestScoreThresholdMonotonic(t *testing.T) {
	query := []float32{1, 0}
	var candidates []Candidate
	for _, s := range []float64{0.05, 0.25, 0.31, 0.5, 0.66, 0.7, 0.95} {
		candidates = append(candidates, Candidate{Embedding: unitAt(s)})
	}

	prev := len(candidates) + 1
	for th := 0.05; th <= 1.0; th += 0.05 {
		n := len(NewScorer(th).Score(query, candidates).Sources)
		if n > prev {
			t.Fatalf("threshold %.2f kept %d sources, more than %d at a lower threshold", th, n, prev)
		}
		prev = n
	}
}

func TestNewScorerDefaultsThreshold(t *testing.T) {
	if s := NewScorer(0); s.Threshold != DefaultSimilarityThreshold {
		t.Fatalf("expected default threshold %f, got %f", DefaultSimilarityThreshold, s.Threshold)
	}
}

func TestCosineSimilarityNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	for name, v := range map[string][]float32{"nan": {nan, 1}, "inf": {inf, 1}} {
		if got := CosineSimilarity([]float32{1, 0}, v); got != 0 {
			t.Fatalf("%s: expected 0, got %f", name, got)
		}
	}

	result := NewScorer(0.3).Score([]float32{1, 0}, []Candidate{{ID: "bad", Embedding: []float32{nan, 1}}})
	if len(result.Sources) != 0 || result.AverageAccuracy != 0 {
		t.Fatalf("non-finite embedding must be filtered out, got %+v", result)
	}
	if got := DefaultRiskThresholds().Classify(result.AverageAccuracy); got != RiskHigh {
		t.Fatalf("expected high risk, got %s", got)
	}
}
