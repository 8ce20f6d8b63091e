package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChatHistory is the audit row written for every answered question.
type ChatHistory struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Question  string         `gorm:"type:text;not null" json:"question"`
	Answer    string         `gorm:"type:text;not null" json:"answer"`
	Accuracy  float64        `gorm:"not null;index" json:"accuracy"`
	RiskLevel string         `gorm:"size:10;not null;index" json:"risk_level"`
	Sources   datatypes.JSON `gorm:"not null" json:"sources"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	UserID    string         `gorm:"size:255;index" json:"user_id,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (ChatHistory) TableName() string { return "chat_history" }
