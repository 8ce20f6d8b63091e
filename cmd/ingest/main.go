package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groundedchat/internal/bootstrap"
	"groundedchat/internal/ingest"
)

func main() {
	dir := flag.String("dir", "", "directory of documents to ingest (txt, md, pdf, csv)")
	userID := flag.Uint("user", 0, "owner user id for the ingested documents")
	watch := flag.Bool("watch", false, "keep running and re-ingest files on create or write")
	debounce := flag.Duration("debounce", 500*time.Millisecond, "quiet period before a changed file is re-ingested")
	flag.Parse()

	if *dir == "" || *userID == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingest -dir <path> -user <id> [-watch]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *dir, uint(*userID), *watch, *debounce); err != nil {
		fmt.Fprintf(os.Stderr, "ingest failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dir string, userID uint, watch bool, debounce time.Duration) error {
	app, err := bootstrap.New(ctx, bootstrap.ModeIngest)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close resources failed: %v\n", err)
		}
	}()

	docs := app.Services.Documents
	sum, err := ingest.Directory(ctx, docs, dir, userID, app.Log)
	if err != nil {
		return err
	}
	app.Log.Info("directory ingested",
		"dir", dir,
		"ingested", sum.Ingested,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"chunks", sum.Chunks,
	)

	if !watch {
		return nil
	}
	return ingest.NewWatcher(docs, userID, debounce, app.Log).Run(ctx, dir)
}
