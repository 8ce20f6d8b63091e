package model

import "time"

type QuestionnaireQuestion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Question    string    `gorm:"type:text;not null" json:"question"`
	Key         string    `gorm:"column:question_key;size:64;not null;uniqueIndex" json:"key"`
	Placeholder string    `gorm:"type:text" json:"placeholder"`
	SortOrder   int       `gorm:"not null" json:"order"`
	IsRequired  bool      `gorm:"not null;default:true" json:"is_required"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type QuestionnaireAnswer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	QuestionID uint      `gorm:"not null;index" json:"question_id"`
	Answer     string    `gorm:"type:text;not null" json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
