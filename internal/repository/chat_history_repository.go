package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"groundedchat/internal/model"
)

// HistoryFilter narrows a chat history query. Zero values mean "no filter".
type HistoryFilter struct {
	UserID      string
	RiskLevel   string
	MinAccuracy float64
	Limit       int
}

type ChatHistoryRepository struct {
	db *gorm.DB
}

func NewChatHistoryRepository(db *gorm.DB) *ChatHistoryRepository {
	return &ChatHistoryRepository{db: db}
}

func (r *ChatHistoryRepository) Create(ctx context.Context, row *model.ChatHistory) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create chat history failed: %w", err)
	}
	return nil
}

// List returns matching rows newest first.
func (r *ChatHistoryRepository) List(ctx context.Context, f HistoryFilter) ([]model.ChatHistory, error) {
	q := r.db.WithContext(ctx).Model(&model.ChatHistory{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.RiskLevel != "" {
		q = q.Where("risk_level = ?", f.RiskLevel)
	}
	if f.MinAccuracy > 0 {
		q = q.Where("accuracy >= ?", f.MinAccuracy)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []model.ChatHistory
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list chat history failed: %w", err)
	}
	return rows, nil
}
