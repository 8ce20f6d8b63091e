package rag

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
)

type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vec, nil
}

type mockIndex struct {
	mu         sync.Mutex
	candidates []Candidate
	embeddings map[string][]float32
	searchErr  error
	fetchErr   error
	searches   int
	lastK      int
}

func (m *mockIndex) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches++
	m.lastK = k
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	out := make([]Candidate, len(m.candidates))
	copy(out, m.candidates)
	return out, nil
}

func (m *mockIndex) StoredEmbedding(ctx context.Context, id string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.embeddings[id], nil
}

type generateCall struct {
	templateID string
	vars       map[string]any
}

type mockGenerator struct {
	answer string
	err    error
	calls  []generateCall
}

func (m *mockGenerator) Generate(ctx context.Context, templateID string, vars map[string]any) (string, error) {
	m.calls = append(m.calls, generateCall{templateID: templateID, vars: vars})
	if m.err != nil {
		return "", m.err
	}
	if m.answer != "" {
		return m.answer, nil
	}
	return "answer from " + templateID, nil
}

type mockRecorder struct {
	records []HistoryRecord
	err     error
}

func (m *mockRecorder) RecordHistory(ctx context.Context, record HistoryRecord) error {
	m.records = append(m.records, record)
	return m.err
}

func newIndex(sims ...float64) *mockIndex {
	idx := &mockIndex{embeddings: map[string][]float32{}}
	for i, s := range sims {
		id := string(rune('a' + i))
		idx.candidates = append(idx.candidates, Candidate{
			ID:       id,
			Content:  "content " + id,
			Metadata: map[string]any{"documentId": id},
		})
		idx.embeddings[id] = unitAt(s)
	}
	return idx
}

func newTestPipeline(idx *mockIndex, gen *mockGenerator, rec *mockRecorder) (*Pipeline, *mockEmbedder) {
	emb := &mockEmbedder{vec: []float32{1, 0}}
	return NewPipeline(emb, idx, gen, rec, DefaultConfig(), nil), emb
}

func TestChatGroundedPath(t *testing.T) {
	idx := newIndex(0.9, 0.8, 0.6)
	gen := &mockGenerator{}
	rec := &mockRecorder{}
	p, _ := newTestPipeline(idx, gen, rec)

	resp, err := p.Chat(context.Background(), "What is the onboarding process?", Options{SimilarityThreshold: thresholdOf(0.3)})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	if math.Round(resp.AverageAccuracy) != 77 {
		t.Fatalf("expected accuracy ~77, got %f", resp.AverageAccuracy)
	}
	if resp.RiskLevel != RiskLow {
		t.Fatalf("expected low risk, got %s", resp.RiskLevel)
	}
	if len(resp.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(resp.Sources))
	}
	if len(gen.calls) != 1 || gen.calls[0].templateID != "grounded.v1" {
		t.Fatalf("expected one grounded generation, got %+v", gen.calls)
	}
	if conf := gen.calls[0].vars["confidence"]; conf != float64(77) {
		t.Fatalf("expected confidence 77 passed to prompt, got %v", conf)
	}
	if idx.lastK != DefaultMaxSources {
		t.Fatalf("expected default k %d, got %d", DefaultMaxSources, idx.lastK)
	}
}

func TestChatMediumRiskStillGrounded(t *testing.T) {
	idx := newIndex(0.4, 0.45)
	gen := &mockGenerator{}
	p, _ := newTestPipeline(idx, gen, &mockRecorder{})

	resp, err := p.Chat(context.Background(), "policy details", Options{})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if resp.RiskLevel != RiskMedium {
		t.Fatalf("expected medium risk, got %s", resp.RiskLevel)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("expected sources on medium risk, got %d", len(resp.Sources))
	}
	if gen.calls[0].templateID != "grounded.v1" {
		t.Fatalf("expected grounded template, got %s", gen.calls[0].templateID)
	}
}

func TestChatGenericShortCircuit(t *testing.T) {
	idx := newIndex(0.9)
	gen := &mockGenerator{}
	rec := &mockRecorder{}
	p, emb := newTestPipeline(idx, gen, rec)

	resp, err := p.Chat(context.Background(), "What can you do?", Options{})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if emb.calls != 0 || idx.searches != 0 {
		t.Fatal("generic question must not trigger retrieval")
	}
	if resp.AverageAccuracy != 100 || resp.RiskLevel != RiskLow {
		t.Fatalf("unexpected generic response: %+v", resp)
	}
	if resp.Sources == nil || len(resp.Sources) != 0 {
		t.Fatal("expected empty, non-nil sources")
	}
	if gen.calls[0].templateID != "generic.v1" {
		t.Fatalf("expected generic template, got %s", gen.calls[0].templateID)
	}
	if len(rec.records) != 1 {
		t.Fatalf("expected one history record, got %d", len(rec.records))
	}
}

func TestChatDegradeSuppressesSources(t *testing.T) {
	idx := newIndex(0.1, 0.2, 0.25)
	gen := &mockGenerator{}
	rec := &mockRecorder{}
	p, _ := newTestPipeline(idx, gen, rec)

	resp, err := p.Chat(context.Background(), "unrelated question", Options{SimilarityThreshold: thresholdOf(0.3)})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if resp.RiskLevel != RiskHigh {
		t.Fatalf("expected high risk, got %s", resp.RiskLevel)
	}
	if len(resp.Sources) != 0 {
		t.Fatalf("expected sources suppressed, got %d", len(resp.Sources))
	}
	if gen.calls[0].templateID != "fallback.v1" {
		t.Fatalf("expected fallback template, got %s", gen.calls[0].templateID)
	}
	if ctxText, _ := gen.calls[0].vars["context"].(string); ctxText == "" {
		t.Fatal("expected pre-filter candidate content in fallback prompt")
	}
	if len(rec.records[0].Sources) != 0 {
		t.Fatal("history must not record suppressed sources")
	}
}

func TestChatEmptyIndexIsHighRisk(t *testing.T) {
	idx := newIndex()
	gen := &mockGenerator{}
	p, _ := newTestPipeline(idx, gen, &mockRecorder{})

	resp, err := p.Chat(context.Background(), "anything", Options{})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if resp.RiskLevel != RiskHigh || len(resp.Sources) != 0 || resp.AverageAccuracy != 0 {
		t.Fatalf("unexpected response for empty index: %+v", resp)
	}
}

func TestChatEmptyFilteredForcesHighRisk(t *testing.T) {
	idx := newIndex(0.1)
	cfg := DefaultConfig()
	cfg.Risk = RiskThresholds{HighMax: -10, MediumMax: -5}
	p := NewPipeline(&mockEmbedder{vec: []float32{1, 0}}, idx, &mockGenerator{}, &mockRecorder{}, cfg, nil)

	resp, err := p.Chat(context.Background(), "anything", Options{SimilarityThreshold: thresholdOf(0.5)})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if resp.RiskLevel != RiskHigh {
		t.Fatalf("expected high risk when nothing passes the threshold, got %s", resp.RiskLevel)
	}
}

func TestChatRecordsHistoryMatchingResponse(t *testing.T) {
	idx := newIndex(0.9, 0.7)
	rec := &mockRecorder{}
	p, _ := newTestPipeline(idx, &mockGenerator{}, rec)

	resp, err := p.Chat(context.Background(), "question", Options{UserID: "42"})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if len(rec.records) != 1 {
		t.Fatalf("expected exactly one history record, got %d", len(rec.records))
	}
	got := rec.records[0]
	if got.Accuracy != resp.AverageAccuracy || got.RiskLevel != resp.RiskLevel || got.Answer != resp.Answer {
		t.Fatalf("history record does not match response: %+v vs %+v", got, resp)
	}
	if got.UserID != "42" || got.Metadata["userId"] != "42" {
		t.Fatalf("expected user attribution, got %+v", got)
	}
}

func TestChatRecorderFailureDoesNotFailRequest(t *testing.T) {
	idx := newIndex(0.9)
	rec := &mockRecorder{err: errors.New("db down")}
	p, _ := newTestPipeline(idx, &mockGenerator{answer: "ok"}, rec)

	resp, err := p.Chat(context.Background(), "question", Options{})
	if err != nil {
		t.Fatalf("recorder failure must not fail the request: %v", err)
	}
	if resp.Answer != "ok" {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
}

func TestChatErrorsPropagate(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		p := NewPipeline(&mockEmbedder{err: errors.New("rate limited")}, newIndex(0.9), &mockGenerator{}, &mockRecorder{}, DefaultConfig(), nil)
		_, err := p.Chat(context.Background(), "q", Options{})
		if !errors.Is(err, ErrEmbedding) {
			t.Fatalf("expected ErrEmbedding, got %v", err)
		}
	})
	t.Run("search", func(t *testing.T) {
		idx := newIndex(0.9)
		idx.searchErr = errors.New("index offline")
		p, _ := newTestPipeline(idx, &mockGenerator{}, &mockRecorder{})
		_, err := p.Chat(context.Background(), "q", Options{})
		if !errors.Is(err, ErrRetrieval) {
			t.Fatalf("expected ErrRetrieval, got %v", err)
		}
	})
	t.Run("stored embedding", func(t *testing.T) {
		idx := newIndex(0.9, 0.8)
		idx.fetchErr = errors.New("row missing")
		p, _ := newTestPipeline(idx, &mockGenerator{}, &mockRecorder{})
		_, err := p.Chat(context.Background(), "q", Options{})
		if !errors.Is(err, ErrRetrieval) {
			t.Fatalf("expected ErrRetrieval, got %v", err)
		}
	})
	t.Run("generation", func(t *testing.T) {
		rec := &mockRecorder{}
		p, _ := newTestPipeline(newIndex(0.9), &mockGenerator{err: errors.New("timeout")}, rec)
		_, err := p.Chat(context.Background(), "q", Options{})
		if !errors.Is(err, ErrGeneration) {
			t.Fatalf("expected ErrGeneration, got %v", err)
		}
		if len(rec.records) != 0 {
			t.Fatal("failed request must not be recorded")
		}
	})
}

func TestChatRejectsEmptyQuery(t *testing.T) {
	p, _ := newTestPipeline(newIndex(), &mockGenerator{}, &mockRecorder{})
	if _, err := p.Chat(context.Background(), "   ", Options{}); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestChatUsesIndexEmbeddingWhenPresent(t *testing.T) {
	idx := newIndex(0.9)
	idx.candidates[0].Embedding = unitAt(0.5)
	idx.fetchErr = errors.New("should not be called")
	p, _ := newTestPipeline(idx, &mockGenerator{}, &mockRecorder{})

	resp, err := p.Chat(context.Background(), "q", Options{})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if math.Round(resp.AverageAccuracy) != 50 {
		t.Fatalf("expected accuracy from embedded vector, got %f", resp.AverageAccuracy)
	}
}

func thresholdOf(v float64) *float64 { return &v }

func TestChatZeroThresholdKeepsEveryCandidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Risk = RiskThresholds{HighMax: 5, MediumMax: 10}

	p := NewPipeline(&mockEmbedder{vec: []float32{1, 0}}, newIndex(0.1, 0.2), &mockGenerator{}, &mockRecorder{}, cfg, nil)
	resp, err := p.Chat(context.Background(), "anything", Options{SimilarityThreshold: thresholdOf(0)})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if len(resp.Sources) != 2 || resp.RiskLevel != RiskLow {
		t.Fatalf("expected both candidates kept at threshold 0, got %d sources risk %s", len(resp.Sources), resp.RiskLevel)
	}

	p = NewPipeline(&mockEmbedder{vec: []float32{1, 0}}, newIndex(0.1, 0.2), &mockGenerator{}, &mockRecorder{}, cfg, nil)
	resp, err = p.Chat(context.Background(), "anything", Options{})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if len(resp.Sources) != 0 || resp.RiskLevel != RiskHigh {
		t.Fatalf("expected the configured threshold to filter everything, got %d sources risk %s", len(resp.Sources), resp.RiskLevel)
	}
}
