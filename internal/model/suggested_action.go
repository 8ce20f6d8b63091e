package model

import "time"

// SuggestedAction is a canned prompt shown on an empty chat.
type SuggestedAction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	Label     string    `gorm:"type:text;not null" json:"label"`
	Action    string    `gorm:"type:text;not null" json:"action"`
	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	SortOrder int       `gorm:"not null;index" json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
