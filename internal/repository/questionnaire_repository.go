package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"groundedchat/internal/model"
)

// AnswerView joins an answer with its question key.
type AnswerView struct {
	QuestionID uint   `json:"question_id"`
	Key        string `gorm:"column:question_key" json:"key"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

type QuestionnaireRepository struct {
	db *gorm.DB
}

func NewQuestionnaireRepository(db *gorm.DB) *QuestionnaireRepository {
	return &QuestionnaireRepository{db: db}
}

func (r *QuestionnaireRepository) ListQuestions(ctx context.Context) ([]model.QuestionnaireQuestion, error) {
	var list []model.QuestionnaireQuestion
	if err := r.db.WithContext(ctx).Order("sort_order ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list questionnaire questions failed: %w", err)
	}
	return list, nil
}

func (r *QuestionnaireRepository) QuestionIDs(ctx context.Context) (map[uint]struct{}, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&model.QuestionnaireQuestion{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list questionnaire ids failed: %w", err)
	}
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *QuestionnaireRepository) ListAnswers(ctx context.Context, userID uint) ([]AnswerView, error) {
	var out []AnswerView
	err := r.db.WithContext(ctx).
		Table("questionnaire_answers AS a").
		Select("a.question_id, q.question_key, q.question, a.answer").
		Joins("JOIN questionnaire_questions AS q ON q.id = a.question_id").
		Where("a.user_id = ?", userID).
		Order("q.sort_order ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list questionnaire answers failed: %w", err)
	}
	return out, nil
}

func (r *QuestionnaireRepository) CreateAnswers(ctx context.Context, answers []model.QuestionnaireAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&answers).Error; err != nil {
		return fmt.Errorf("create questionnaire answers failed: %w", err)
	}
	return nil
}

// ReplaceAnswers deletes the user's answers and inserts the new set.
func (r *QuestionnaireRepository) ReplaceAnswers(ctx context.Context, userID uint, answers []model.QuestionnaireAnswer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.QuestionnaireAnswer{}).Error; err != nil {
			return fmt.Errorf("delete questionnaire answers failed: %w", err)
		}
		if len(answers) == 0 {
			return nil
		}
		if err := tx.Create(&answers).Error; err != nil {
			return fmt.Errorf("create questionnaire answers failed: %w", err)
		}
		return nil
	})
}

// SeedQuestions inserts defaults only when the table is empty.
func (r *QuestionnaireRepository) SeedQuestions(ctx context.Context, defaults []model.QuestionnaireQuestion) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.QuestionnaireQuestion{}).Count(&n).Error; err != nil {
		return fmt.Errorf("count questionnaire questions failed: %w", err)
	}
	if n > 0 || len(defaults) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&defaults).Error; err != nil {
		return fmt.Errorf("seed questionnaire questions failed: %w", err)
	}
	return nil
}
