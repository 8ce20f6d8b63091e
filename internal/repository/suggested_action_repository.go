package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"groundedchat/internal/model"
)

type SuggestedActionRepository struct {
	db *gorm.DB
}

func NewSuggestedActionRepository(db *gorm.DB) *SuggestedActionRepository {
	return &SuggestedActionRepository{db: db}
}

func (r *SuggestedActionRepository) ListActive(ctx context.Context) ([]model.SuggestedAction, error) {
	var list []model.SuggestedAction
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("sort_order ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list suggested actions failed: %w", err)
	}
	return list, nil
}

func (r *SuggestedActionRepository) Seed(ctx context.Context, defaults []model.SuggestedAction) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.SuggestedAction{}).Count(&n).Error; err != nil {
		return fmt.Errorf("count suggested actions failed: %w", err)
	}
	if n > 0 || len(defaults) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&defaults).Error; err != nil {
		return fmt.Errorf("seed suggested actions failed: %w", err)
	}
	return nil
}
