package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"groundedchat/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ListActive returns every active chunk. If userID is non-zero only that
// user's chunks are returned.
func (r *ChunkRepository) ListActive(ctx context.Context, userID uint) ([]model.DocumentChunk, error) {
	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var chunks []model.DocumentChunk
	if err := q.Order("id ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list active chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) ListByDocumentID(ctx context.Context, documentID uint) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("chunk_index ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list document chunks failed: %w", err)
	}
	return chunks, nil
}

// GetByID returns ErrNotFound when the chunk does not exist.
func (r *ChunkRepository) GetByID(ctx context.Context, id uint) (*model.DocumentChunk, error) {
	var chunk model.DocumentChunk
	if err := r.db.WithContext(ctx).First(&chunk, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get chunk failed: %w", err)
	}
	return &chunk, nil
}
