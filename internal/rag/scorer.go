package rag

import "math"

const DefaultSimilarityThreshold = 0.3

type Scorer struct {
	Threshold float64
}

type ScoreResult struct {
	Sources         []Candidate
	AverageAccuracy float64
}

func NewScorer(threshold float64) Scorer {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return Scorer{Threshold: threshold}
}

// Score annotates every candidate with its similarity to query and keeps the
// ones at or above the threshold. Candidate order is preserved.
func (s Scorer) Score(query []float32, candidates []Candidate) ScoreResult {
	kept := make([]Candidate, 0, len(candidates))
	var sum float64
	for _, c := range candidates {
		c.Similarity = CosineSimilarity(query, c.Embedding)
		if c.Similarity < s.Threshold {
			continue
		}
		kept = append(kept, c)
		sum += c.Similarity
	}

	result := ScoreResult{Sources: kept}
	if len(kept) > 0 {
		result.AverageAccuracy = sum / float64(len(kept)) * 100
	}
	return result
}

// CosineSimilarity returns a value in [0,1]. Mismatched lengths, empty input,
// zero-norm vectors and non-finite components yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case math.IsNaN(sim), math.IsInf(sim, 0), sim < 0:
		return 0
	case sim > 1:
		return 1
	}
	return sim
}
