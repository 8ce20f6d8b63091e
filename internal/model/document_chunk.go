package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// DocumentChunk is one embedded slice of a document. The embedding is kept as
// a JSON array so the same schema works on mysql, postgres and sqlite.
type DocumentChunk struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	DocumentID uint           `gorm:"not null;index" json:"document_id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	ChunkIndex int            `gorm:"not null" json:"chunk_index"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	Embedding  string         `gorm:"type:text" json:"-"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	FileType   string         `gorm:"size:64" json:"file_type"`
	IsActive   bool           `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt  time.Time      `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding; nil when absent or malformed.
func (c *DocumentChunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(c.Embedding), &v); err != nil {
		return nil
	}
	return v
}

func (c *DocumentChunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}

// MetadataMap decodes Metadata; an empty map is returned on absence or error.
func (c *DocumentChunk) MetadataMap() map[string]any {
	out := map[string]any{}
	if len(c.Metadata) == 0 {
		return out
	}
	_ = json.Unmarshal(c.Metadata, &out)
	return out
}
