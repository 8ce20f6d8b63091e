// Package ingest feeds files from disk into the document store.
package ingest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"groundedchat/internal/app"
	"groundedchat/internal/pkg/extract"
	"groundedchat/internal/platform/logger"
)

// FileIngester is satisfied by *app.DocumentService.
type FileIngester interface {
	IngestFile(ctx context.Context, userID uint, name string, r io.Reader, source string) (*app.IngestResult, error)
}

type Summary struct {
	Ingested int
	Skipped  int
	Failed   int
	Chunks   int
}

// Directory ingests every supported file under dir. Individual file failures
// are logged and counted; only walk errors abort.
func Directory(ctx context.Context, ing FileIngester, dir string, userID uint, log *logger.Logger) (Summary, error) {
	if log == nil {
		log = logger.Nop()
	}
	var sum Summary
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if !extract.IsSupported(path) {
			sum.Skipped++
			return nil
		}
		res, err := File(ctx, ing, dir, path, userID)
		if err != nil {
			sum.Failed++
			log.Warn("ingest file failed", "path", path, "error", err)
			return nil
		}
		sum.Ingested++
		sum.Chunks += res.ChunkCount
		log.Info("file ingested", "path", path, "document_id", res.Document.ID, "chunks", res.ChunkCount)
		return nil
	})
	if err != nil {
		return sum, fmt.Errorf("walk %s failed: %w", dir, err)
	}
	return sum, nil
}

// File ingests one file from disk. It is titled by its path relative to root
// and the source is recorded as its full path.
func File(ctx context.Context, ing FileIngester, root, path string, userID uint) (*app.IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ing.IngestFile(ctx, userID, relativeName(root, path), f, "file:"+path)
}

func relativeName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return rel
}
