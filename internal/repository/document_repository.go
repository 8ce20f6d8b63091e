package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"groundedchat/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateWithChunks stores the document and its chunks atomically; chunk
// DocumentID fields are filled from the new document.
func (r *DocumentRepository) CreateWithChunks(ctx context.Context, doc *model.Document, chunks []model.DocumentChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc.ChunkCount = len(chunks)
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("create document failed: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}
		for i := range chunks {
			chunks[i].DocumentID = doc.ID
			chunks[i].UserID = doc.UserID
		}
		if err := tx.CreateInBatches(&chunks, 100).Error; err != nil {
			return fmt.Errorf("create document chunks failed: %w", err)
		}
		return nil
	})
}

// ListByUserID returns the user's documents newest first. An empty fileTypes
// matches every type.
func (r *DocumentRepository) ListByUserID(ctx context.Context, userID uint, includeInactive bool, fileTypes []string) ([]model.Document, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if len(fileTypes) > 0 {
		q = q.Where("file_type IN ?", fileTypes)
	}
	var list []model.Document
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// GetByIDAndUserID returns nil, nil when no document matches.
func (r *DocumentRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// GetActiveByTitle finds the user's live document with the given title, used to
// version re-ingested files.
func (r *DocumentRepository) GetActiveByTitle(ctx context.Context, userID uint, title string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND title = ? AND is_active = ?", userID, title, true).
		Order("version DESC").
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by title failed: %w", err)
	}
	return &doc, nil
}

// LatestVersion returns the highest version stored for the title, active or
// not, and 0 when there is none.
func (r *DocumentRepository) LatestVersion(ctx context.Context, userID uint, title string) (int, error) {
	var latest int
	err := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("user_id = ? AND title = ?", userID, title).
		Select("COALESCE(MAX(version), 0)").
		Scan(&latest).Error
	if err != nil {
		return 0, fmt.Errorf("get latest document version failed: %w", err)
	}
	return latest, nil
}

// SetActive flips the document and all of its chunks.
func (r *DocumentRepository) SetActive(ctx context.Context, id, userID uint, active bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Document{}).Where("id = ? AND user_id = ?", id, userID).Update("is_active", active)
		if res.Error != nil {
			return fmt.Errorf("update document failed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Model(&model.DocumentChunk{}).Where("document_id = ?", id).Update("is_active", active).Error; err != nil {
			return fmt.Errorf("update document chunks failed: %w", err)
		}
		return nil
	})
}

func (r *DocumentRepository) Delete(ctx context.Context, id, userID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Document{})
		if res.Error != nil {
			return fmt.Errorf("delete document failed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("document_id = ?", id).Delete(&model.DocumentChunk{}).Error; err != nil {
			return fmt.Errorf("delete document chunks failed: %w", err)
		}
		return nil
	})
}
