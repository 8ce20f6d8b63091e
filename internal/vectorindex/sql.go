package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"groundedchat/internal/model"
	"groundedchat/internal/rag"
	"groundedchat/internal/repository"
)

type chunkSource interface {
	ListActive(ctx context.Context, userID uint) ([]model.DocumentChunk, error)
	GetByID(ctx context.Context, id uint) (*model.DocumentChunk, error)
}

// SQLIndex scores every active chunk row against the query. The rows are the
// index, so the write methods have nothing to do.
type SQLIndex struct {
	chunks chunkSource
}

func NewSQLIndex(chunks *repository.ChunkRepository) *SQLIndex {
	return &SQLIndex{chunks: chunks}
}

func (s *SQLIndex) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]rag.Candidate, error) {
	rows, err := s.chunks.ListActive(ctx, 0)
	if err != nil {
		return nil, err
	}

	out := make([]rag.Candidate, 0, len(rows))
	for _, row := range rows {
		emb := row.EmbeddingVector()
		if len(emb) == 0 {
			continue
		}
		out = append(out, rag.Candidate{
			ID:         strconv.FormatUint(uint64(row.ID), 10),
			Content:    row.Content,
			Metadata:   chunkMetadata(row),
			Embedding:  emb,
			Similarity: rag.CosineSimilarity(vector, emb),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *SQLIndex) StoredEmbedding(ctx context.Context, candidateID string) ([]float32, error) {
	id, err := strconv.ParseUint(candidateID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chunk id %q: %w", candidateID, err)
	}
	chunk, err := s.chunks.GetByID(ctx, uint(id))
	if err != nil {
		return nil, err
	}
	return chunk.EmbeddingVector(), nil
}

func (s *SQLIndex) Upsert(context.Context, []model.DocumentChunk) error { return nil }

func (s *SQLIndex) DeleteDocument(context.Context, uint) error { return nil }

func (s *SQLIndex) SetDocumentActive(context.Context, uint, bool) error { return nil }
