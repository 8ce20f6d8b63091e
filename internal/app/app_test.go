package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"groundedchat/internal/model"
	"groundedchat/internal/platform/database"
	"groundedchat/internal/rag"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(context.Background(), "sqlite", filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

type fakeAnswerer struct {
	resp  *rag.ChatResponse
	err   error
	calls []rag.Options
}

func (f *fakeAnswerer) Chat(_ context.Context, _ string, opts rag.Options) (*rag.ChatResponse, error) {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[uint][]model.Message
	seeds   int
	appends int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[uint][]model.Message{}}
}

func (c *fakeCache) Recent(_ context.Context, chatID uint) ([]model.Message, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs, ok := c.data[chatID]
	return msgs, ok, nil
}

func (c *fakeCache) Seed(_ context.Context, chatID uint, messages []model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeds++
	c.data[chatID] = append([]model.Message(nil), messages...)
	return nil
}

func (c *fakeCache) Append(_ context.Context, chatID uint, turns ...model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appends++
	if existing, ok := c.data[chatID]; ok {
		c.data[chatID] = append(existing, turns...)
	}
	return nil
}

func (c *fakeCache) Delete(_ context.Context, chatID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, chatID)
	return nil
}

// fakeEmbedder returns a two-dimensional vector per text and counts calls.
type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type fakeIndex struct {
	upserted  int
	upsertErr error
	deleted   []uint
	active    map[uint]bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{active: map[uint]bool{}}
}

func (f *fakeIndex) SimilaritySearch(context.Context, []float32, int) ([]rag.Candidate, error) {
	return nil, nil
}

func (f *fakeIndex) StoredEmbedding(context.Context, string) ([]float32, error) {
	return nil, nil
}

func (f *fakeIndex) Upsert(_ context.Context, chunks []model.DocumentChunk) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted += len(chunks)
	return nil
}

func (f *fakeIndex) DeleteDocument(_ context.Context, docID uint) error {
	f.deleted = append(f.deleted, docID)
	return nil
}

func (f *fakeIndex) SetDocumentActive(_ context.Context, docID uint, active bool) error {
	f.active[docID] = active
	return nil
}
