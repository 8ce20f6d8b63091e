package model

import (
	"time"

	"gorm.io/datatypes"
)

type Document struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	Title      string         `gorm:"size:256;not null" json:"title"`
	FileType   string         `gorm:"size:64" json:"file_type"`
	Source     string         `gorm:"size:1024" json:"source,omitempty"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	IsActive   bool           `gorm:"not null;default:true;index" json:"is_active"`
	Version    int            `gorm:"not null;default:1" json:"version"`
	ChunkCount int            `gorm:"not null;default:0" json:"chunk_count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
