package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"groundedchat/internal/app"
	"groundedchat/internal/model"
	"groundedchat/internal/platform/database"
	"groundedchat/internal/repository"
	"groundedchat/internal/vectorindex"
)

type recordingIngester struct {
	mu    sync.Mutex
	names []string
	fail  map[string]bool
}

func (r *recordingIngester) IngestFile(_ context.Context, _ uint, name string, rd io.Reader, source string) (*app.IngestResult, error) {
	if _, err := io.ReadAll(rd); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[filepath.Base(name)] {
		return nil, errors.New("boom")
	}
	r.names = append(r.names, filepath.Base(name))
	return &app.IngestResult{Document: model.Document{Title: filepath.Base(name), Source: source}, ChunkCount: 2}, nil
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDirectoryIngestsSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "b.md", "beta")
	writeFile(t, dir, "c.docx", "gamma")
	writeFile(t, dir, "d.csv", "k,v\n1,2\n")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "nested"), "e.txt", "epsilon")

	ing := &recordingIngester{fail: map[string]bool{"d.csv": true}}
	sum, err := Directory(context.Background(), ing, dir, 1, nil)
	if err != nil {
		t.Fatalf("directory ingest failed: %v", err)
	}
	if sum.Ingested != 3 || sum.Skipped != 1 || sum.Failed != 1 || sum.Chunks != 6 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestDirectoryMissingDir(t *testing.T) {
	if _, err := Directory(context.Background(), &recordingIngester{}, filepath.Join(t.TempDir(), "nope"), 1, nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestWatcherReingestsOnWrite(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{}
	w := NewWatcher(ing, 1, 50*time.Millisecond, nil)
	done := make(chan string, 4)
	w.OnIngest = func(path string, err error) {
		if err != nil {
			return
		}
		select {
		case done <- filepath.Base(path):
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx, dir) }()

	// The watch is registered asynchronously; keep writing until an ingest lands.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case name := <-done:
			if name != "notes.txt" {
				t.Fatalf("unexpected file ingested %q", name)
			}
			cancel()
			if err := <-runErr; err != nil {
				t.Fatalf("run returned error: %v", err)
			}
			return
		case <-tick.C:
			writeFile(t, dir, "notes.txt", "hello")
			writeFile(t, dir, "ignored.bin", "x")
		case <-deadline:
			t.Fatal("timed out waiting for re-ingest")
		}
	}
}

type unitEmbedder struct{}

func (unitEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestDirectoryKeepsSameNamedFilesApart(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(ctx, "sqlite", filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	docRepo := repository.NewDocumentRepository(db)
	svc := app.NewDocumentService(docRepo, unitEmbedder{},
		vectorindex.NewSQLIndex(repository.NewChunkRepository(db)), app.DocumentConfig{}, nil)

	dir := t.TempDir()
	for _, sub := range []string{"hr", "eng"} {
		if err := os.Mkdir(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, filepath.Join(dir, "hr"), "readme.md", "HR leave policy is twenty days.")
	writeFile(t, filepath.Join(dir, "eng"), "readme.md", "Deploys happen on Tuesdays.")

	sum, err := Directory(ctx, svc, dir, 1, nil)
	if err != nil {
		t.Fatalf("directory ingest failed: %v", err)
	}
	if sum.Ingested != 2 {
		t.Fatalf("expected 2 files ingested, got %+v", sum)
	}

	docs, err := docRepo.ListByUserID(ctx, 1, false, nil)
	if err != nil {
		t.Fatalf("list documents failed: %v", err)
	}
	titles := map[string]bool{}
	for _, d := range docs {
		titles[d.Title] = true
		if d.Version != 1 {
			t.Fatalf("expected independent documents at version 1, got %s v%d", d.Title, d.Version)
		}
	}
	if len(docs) != 2 || !titles["hr/readme.md"] || !titles["eng/readme.md"] {
		t.Fatalf("expected both readmes active, got %v", titles)
	}

	var activeChunks int64
	if err := db.Model(&model.DocumentChunk{}).Where("is_active = ?", true).Count(&activeChunks).Error; err != nil {
		t.Fatalf("count chunks failed: %v", err)
	}
	if activeChunks != 2 {
		t.Fatalf("expected 2 active chunks, got %d", activeChunks)
	}
}

func TestRelativeName(t *testing.T) {
	root := filepath.Join("data", "docs")
	cases := map[string]string{
		filepath.Join(root, "hr", "readme.md"): "hr/readme.md",
		filepath.Join(root, "a.txt"):           "a.txt",
		filepath.Join(root, "..notes.txt"):     "..notes.txt",
		root:                                   "docs",
	}
	for path, want := range cases {
		if got := filepath.ToSlash(relativeName(root, path)); got != want {
			t.Errorf("relativeName(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestDebouncerCollapsesBursts(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	d := newDebouncer(30*time.Millisecond, done)

	for i := 0; i < 20; i++ {
		d.schedule("notes.txt")
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case path := <-d.ready:
		if path != "notes.txt" {
			t.Fatalf("unexpected path %q", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced path")
	}
	select {
	case path := <-d.ready:
		t.Fatalf("burst produced a second emission for %q", path)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncerIgnoresReplacedTimer(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	d := newDebouncer(time.Hour, done)
	defer d.stop()

	d.schedule("a.txt")
	stale := d.pending["a.txt"].seq
	d.schedule("a.txt")
	current := d.pending["a.txt"].seq

	d.fire("a.txt", stale)
	if len(d.ready) != 0 {
		t.Fatal("a replaced timer must not emit")
	}
	if _, ok := d.pending["a.txt"]; !ok {
		t.Fatal("a replaced timer must not clear the current one")
	}

	d.fire("a.txt", current)
	d.fire("a.txt", current)
	if len(d.ready) != 1 {
		t.Fatalf("expected exactly one emission, got %d", len(d.ready))
	}
}
