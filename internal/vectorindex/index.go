package vectorindex

import (
	"context"

	"groundedchat/internal/model"
	"groundedchat/internal/rag"
)

// Store is a rag.Index that can also be written to when documents change.
type Store interface {
	rag.Index
	Upsert(ctx context.Context, chunks []model.DocumentChunk) error
	DeleteDocument(ctx context.Context, documentID uint) error
	SetDocumentActive(ctx context.Context, documentID uint, active bool) error
}

// Payload keys shared by every store so sources look the same regardless of backend.
const (
	MetaChunkID    = "chunk_id"
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
	MetaFileType   = "file_type"
	MetaActive     = "is_active"
	MetaContent    = "content"
)

func chunkMetadata(c model.DocumentChunk) map[string]any {
	meta := c.MetadataMap()
	meta[MetaDocumentID] = c.DocumentID
	meta[MetaChunkIndex] = c.ChunkIndex
	if c.FileType != "" {
		meta[MetaFileType] = c.FileType
	}
	return meta
}
