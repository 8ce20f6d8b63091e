package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"groundedchat/internal/model"
	"groundedchat/internal/pkg/extract"
	"groundedchat/internal/platform/logger"
	"groundedchat/internal/repository"
	"groundedchat/internal/vectorindex"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultEmbedBatch   = 10
)

type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type DocumentConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int
}

type DocumentService struct {
	docRepo  *repository.DocumentRepository
	embedder BatchEmbedder
	index    vectorindex.Store
	cfg      DocumentConfig
	log      *logger.Logger
}

type IngestInput struct {
	UserID   uint
	Title    string
	Content  string
	FileType string
	Source   string
	Metadata map[string]any
}

type IngestResult struct {
	Document   model.Document `json:"document"`
	ChunkCount int            `json:"chunk_count"`
	// Replaced is the id of the previous version that was deactivated, if any.
	Replaced uint `json:"replaced,omitempty"`
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	embedder BatchEmbedder,
	index vectorindex.Store,
	cfg DocumentConfig,
	log *logger.Logger,
) *DocumentService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = defaultChunkOverlap
		if cfg.ChunkOverlap >= cfg.ChunkSize {
			cfg.ChunkOverlap = cfg.ChunkSize / 5
		}
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = defaultEmbedBatch
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentService{
		docRepo:  docRepo,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		log:      log.With("component", "app.DocumentService"),
	}
}

// Ingest chunks and embeds content, then stores the document and indexes its
// chunks. An active document with the same title is superseded.
func (s *DocumentService) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if in.UserID == 0 {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyDocument
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Untitled"
	}
	fileType := in.FileType
	if fileType == "" {
		fileType = "txt"
	}

	pieces := chunkText(content, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(pieces) == 0 {
		return nil, ErrEmptyDocument
	}
	embeddings, err := s.embed(ctx, pieces)
	if err != nil {
		return nil, err
	}

	previous, err := s.docRepo.GetActiveByTitle(ctx, in.UserID, title)
	if err != nil {
		return nil, err
	}
	latest, err := s.docRepo.LatestVersion(ctx, in.UserID, title)
	if err != nil {
		return nil, err
	}
	version := latest + 1

	docMeta, err := marshalMeta(in.Metadata)
	if err != nil {
		return nil, err
	}
	doc := &model.Document{
		UserID:   in.UserID,
		Title:    title,
		FileType: fileType,
		Source:   in.Source,
		Metadata: docMeta,
		IsActive: true,
		Version:  version,
	}

	chunks := make([]model.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		meta, err := marshalMeta(map[string]any{"title": title, "source": in.Source, "version": version})
		if err != nil {
			return nil, err
		}
		chunks[i] = model.DocumentChunk{
			ChunkIndex: i,
			Content:    piece,
			Metadata:   meta,
			FileType:   fileType,
			IsActive:   true,
		}
		chunks[i].SetEmbedding(embeddings[i])
	}

	if err := s.docRepo.CreateWithChunks(ctx, doc, chunks); err != nil {
		return nil, err
	}
	if err := s.index.Upsert(ctx, chunks); err != nil {
		if delErr := s.docRepo.Delete(ctx, doc.ID, doc.UserID); delErr != nil {
			s.log.Error("roll back unindexed document failed", "document_id", doc.ID, "error", delErr)
		}
		return nil, fmt.Errorf("index document chunks failed: %w", err)
	}

	result := &IngestResult{Document: *doc, ChunkCount: len(chunks)}
	if previous != nil {
		if err := s.SetActive(ctx, in.UserID, previous.ID, false); err != nil {
			s.log.Warn("deactivate previous document version failed", "document_id", previous.ID, "error", err)
		} else {
			result.Replaced = previous.ID
		}
	}

	s.log.Info("document ingested", "document_id", doc.ID, "title", title, "chunks", len(chunks), "version", version)
	return result, nil
}

// IngestFile extracts text from r based on the extension of name. The cleaned
// name, directories included, becomes the title.
func (s *DocumentService) IngestFile(ctx context.Context, userID uint, name string, r io.Reader, source string) (*IngestResult, error) {
	text, err := extract.Text(name, r)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrUnsupportedType):
			return nil, ErrUnsupportedFile
		case errors.Is(err, extract.ErrNoText):
			return nil, ErrEmptyDocument
		}
		return nil, err
	}
	return s.Ingest(ctx, IngestInput{
		UserID:   userID,
		Title:    filepath.ToSlash(filepath.Clean(name)),
		Content:  text,
		FileType: extract.FileType(name),
		Source:   source,
	})
}

func (s *DocumentService) List(ctx context.Context, userID uint, includeInactive bool, fileTypes []string) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByUserID(ctx, userID, includeInactive, fileTypes)
}

func (s *DocumentService) SetActive(ctx context.Context, userID, documentID uint, active bool) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	if err := s.docRepo.SetActive(ctx, documentID, userID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	if err := s.index.SetDocumentActive(ctx, documentID, active); err != nil {
		return fmt.Errorf("update index for document %d failed: %w", documentID, err)
	}
	return nil
}

func (s *DocumentService) Delete(ctx context.Context, userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	if err := s.docRepo.Delete(ctx, documentID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	if err := s.index.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("remove document %d from index failed: %w", documentID, err)
	}
	return nil
}

// embed calls the provider in fixed-size batches.
func (s *DocumentService) embed(ctx context.Context, pieces []string) ([][]float32, error) {
	out := make([][]float32, 0, len(pieces))
	for i := 0; i < len(pieces); i += s.cfg.EmbedBatchSize {
		end := min(i+s.cfg.EmbedBatchSize, len(pieces))
		batch, err := s.embedder.EmbedBatch(ctx, pieces[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d failed: %w", i, end-1, err)
		}
		out = append(out, batch...)
	}
	if len(out) != len(pieces) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(out), len(pieces))
	}
	return out, nil
}

func marshalMeta(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata failed: %w", err)
	}
	return b, nil
}
