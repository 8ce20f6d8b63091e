package rag

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"groundedchat/internal/platform/logger"
)

const DefaultMaxSources = 5

var tracer = otel.Tracer("groundedchat/internal/rag")

type Templates struct {
	Generic  string
	Fallback string
	Grounded string
}

func DefaultTemplates() Templates {
	return Templates{
		Generic:  "generic.v1",
		Fallback: "fallback.v1",
		Grounded: "grounded.v1",
	}
}

type Config struct {
	MaxSources          int
	SimilarityThreshold float64
	Risk                RiskThresholds
	GenericPatterns     []string
	Templates           Templates
}

func DefaultConfig() Config {
	return Config{
		MaxSources:          DefaultMaxSources,
		SimilarityThreshold: DefaultSimilarityThreshold,
		Risk:                DefaultRiskThresholds(),
		GenericPatterns:     DefaultGenericPatterns,
		Templates:           DefaultTemplates(),
	}
}

// Pipeline answers one query at a time: generic short-circuit, or
// retrieve -> score -> classify -> grounded or fallback generation.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	embedder  Embedder
	index     Index
	generator Generator
	recorder  HistoryRecorder
	cfg       Config
	log       *logger.Logger
}

func NewPipeline(
	embedder Embedder,
	index Index,
	generator Generator,
	recorder HistoryRecorder,
	cfg Config,
	log *logger.Logger,
) *Pipeline {
	defaults := DefaultConfig()
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = defaults.MaxSources
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = defaults.SimilarityThreshold
	}
	if !cfg.Risk.valid() {
		cfg.Risk = defaults.Risk
	}
	if cfg.GenericPatterns == nil {
		cfg.GenericPatterns = defaults.GenericPatterns
	}
	if cfg.Templates.Generic == "" {
		cfg.Templates.Generic = defaults.Templates.Generic
	}
	if cfg.Templates.Fallback == "" {
		cfg.Templates.Fallback = defaults.Templates.Fallback
	}
	if cfg.Templates.Grounded == "" {
		cfg.Templates.Grounded = defaults.Templates.Grounded
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		embedder:  embedder,
		index:     index,
		generator: generator,
		recorder:  recorder,
		cfg:       cfg,
		log:       log.With("component", "rag.Pipeline"),
	}
}

func (p *Pipeline) Config() Config {
	return p.cfg
}

func (p *Pipeline) Chat(ctx context.Context, query string, opts Options) (*ChatResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	ctx, span := tracer.Start(ctx, "rag.Chat")
	defer span.End()

	resp, err := p.route(ctx, span, query, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Float64("rag.average_accuracy", resp.AverageAccuracy),
		attribute.String("rag.risk_level", string(resp.RiskLevel)),
		attribute.Int("rag.sources", len(resp.Sources)),
	)

	p.record(ctx, query, resp, opts.UserID)
	return resp, nil
}

func (p *Pipeline) route(ctx context.Context, span trace.Span, query string, opts Options) (*ChatResponse, error) {
	if IsGenericQuestion(query, p.cfg.GenericPatterns) {
		span.SetAttributes(attribute.String("rag.strategy", "generic"))
		answer, err := p.generate(ctx, p.cfg.Templates.Generic, map[string]any{
			"question": query,
		})
		if err != nil {
			return nil, err
		}
		return &ChatResponse{
			Answer:          answer,
			Sources:         []Candidate{},
			AverageAccuracy: 100,
			RiskLevel:       RiskLow,
		}, nil
	}

	k := opts.MaxSources
	if k <= 0 {
		k = p.cfg.MaxSources
	}
	threshold := p.cfg.SimilarityThreshold
	if opts.SimilarityThreshold != nil {
		threshold = *opts.SimilarityThreshold
	}

	queryVec, err := p.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	candidates, err := p.retrieve(ctx, queryVec, k)
	if err != nil {
		return nil, err
	}

	scored := Scorer{Threshold: threshold}.Score(queryVec, candidates)
	risk := p.cfg.Risk.Classify(scored.AverageAccuracy)
	if len(scored.Sources) == 0 {
		risk = RiskHigh
	}

	if risk == RiskHigh {
		span.SetAttributes(attribute.String("rag.strategy", "fallback"))
		answer, err := p.generate(ctx, p.cfg.Templates.Fallback, map[string]any{
			"question":   query,
			"context":    joinContent(candidates),
			"confidence": math.Round(scored.AverageAccuracy),
		})
		if err != nil {
			return nil, err
		}
		return &ChatResponse{
			Answer:          answer,
			Sources:         []Candidate{},
			AverageAccuracy: scored.AverageAccuracy,
			RiskLevel:       risk,
		}, nil
	}

	span.SetAttributes(attribute.String("rag.strategy", "grounded"))
	answer, err := p.generate(ctx, p.cfg.Templates.Grounded, map[string]any{
		"question":   query,
		"context":    joinContent(scored.Sources),
		"confidence": math.Round(scored.AverageAccuracy),
		"risk_level": string(risk),
	})
	if err != nil {
		return nil, err
	}
	return &ChatResponse{
		Answer:          answer,
		Sources:         scored.Sources,
		AverageAccuracy: scored.AverageAccuracy,
		RiskLevel:       risk,
	}, nil
}

func (p *Pipeline) embed(ctx context.Context, query string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "rag.Embed")
	defer span.End()

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrEmbedding)
	}
	return vec, nil
}

// retrieve runs the similarity search and then fetches each candidate's
// stored embedding concurrently.
func (p *Pipeline) retrieve(ctx context.Context, queryVec []float32, k int) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "rag.Retrieve")
	defer span.End()

	candidates, err := p.index.SimilaritySearch(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	span.SetAttributes(attribute.Int("rag.candidates", len(candidates)))

	g, gctx := errgroup.WithContext(ctx)
	for i := range candidates {
		if len(candidates[i].Embedding) > 0 {
			continue
		}
		g.Go(func() error {
			vec, err := p.index.StoredEmbedding(gctx, candidates[i].ID)
			if err != nil {
				return fmt.Errorf("stored embedding %s: %w", candidates[i].ID, err)
			}
			candidates[i].Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	return candidates, nil
}

func (p *Pipeline) generate(ctx context.Context, templateID string, vars map[string]any) (string, error) {
	ctx, span := tracer.Start(ctx, "rag.Generate", trace.WithAttributes(attribute.String("rag.template", templateID)))
	defer span.End()

	answer, err := p.generator.Generate(ctx, templateID, vars)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: empty answer", ErrGeneration)
	}
	return answer, nil
}

// record never fails the request; the answer has already been computed.
func (p *Pipeline) record(ctx context.Context, query string, resp *ChatResponse, userID string) {
	if p.recorder == nil {
		return
	}
	now := time.Now().UTC()
	metadata := map[string]any{"timestamp": now.Format(time.RFC3339)}
	if userID != "" {
		metadata["userId"] = userID
	}
	record := HistoryRecord{
		Question:  query,
		Answer:    resp.Answer,
		Accuracy:  resp.AverageAccuracy,
		RiskLevel: resp.RiskLevel,
		Sources:   resp.Sources,
		Metadata:  metadata,
		UserID:    userID,
		CreatedAt: now,
	}
	if err := p.recorder.RecordHistory(ctx, record); err != nil {
		p.log.Warn("record chat history failed", "error", err, "risk_level", resp.RiskLevel)
	}
}

func joinContent(candidates []Candidate) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if s := strings.TrimSpace(c.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
