package rag

import (
	"context"
	"errors"
	"time"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var (
	ErrEmptyQuery = errors.New("query is empty")
	ErrEmbedding  = errors.New("embedding failed")
	ErrRetrieval  = errors.New("retrieval failed")
	ErrGeneration = errors.New("generation failed")
)

// Candidate is a chunk returned by the vector index. Embedding is filled in
// by the pipeline from StoredEmbedding; Similarity is computed per request.
type Candidate struct {
	ID         string         `json:"-"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Embedding  []float32      `json:"-"`
	Similarity float64        `json:"similarity"`
}

type ChatResponse struct {
	Answer          string      `json:"answer"`
	Sources         []Candidate `json:"sources"`
	AverageAccuracy float64     `json:"averageAccuracy"`
	RiskLevel       RiskLevel   `json:"riskLevel"`
}

type Options struct {
	MaxSources          int
	// SimilarityThreshold overrides the configured threshold when set; 0
	// keeps every retrieved candidate.
	SimilarityThreshold *float64
	UserID              string
}

type HistoryRecord struct {
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Accuracy  float64        `json:"accuracy"`
	RiskLevel RiskLevel      `json:"risk_level"`
	Sources   []Candidate    `json:"sources"`
	Metadata  map[string]any `json:"metadata"`
	UserID    string         `json:"user_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Index interface {
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]Candidate, error)
	StoredEmbedding(ctx context.Context, candidateID string) ([]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, templateID string, vars map[string]any) (string, error)
}

type HistoryRecorder interface {
	RecordHistory(ctx context.Context, record HistoryRecord) error
}
