package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"groundedchat/internal/pkg/extract"
	"groundedchat/internal/platform/logger"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher re-ingests supported files in a directory when they are created or
// written. Bursts of events for one path collapse into a single ingest.
type Watcher struct {
	ing      FileIngester
	userID   uint
	debounce time.Duration
	log      *logger.Logger

	// OnIngest, when set, is called after every attempt.
	OnIngest func(path string, err error)
}

func NewWatcher(ing FileIngester, userID uint, debounce time.Duration, log *logger.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{
		ing:      ing,
		userID:   userID,
		debounce: debounce,
		log:      log.With("component", "ingest.Watcher"),
	}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher failed: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s failed: %w", dir, err)
	}
	w.log.Info("watching directory", "dir", dir)

	deb := newDebouncer(w.debounce, ctx.Done())
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !extract.IsSupported(ev.Name) {
				continue
			}
			deb.schedule(ev.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("fs watcher error", "error", err)
		case path := <-deb.ready:
			res, err := File(ctx, w.ing, dir, path, w.userID)
			if err != nil {
				w.log.Warn("re-ingest file failed", "path", path, "error", err)
			} else {
				w.log.Info("file re-ingested", "path", path, "document_id", res.Document.ID,
					"version", res.Document.Version, "chunks", res.ChunkCount)
			}
			if w.OnIngest != nil {
				w.OnIngest(path, err)
			}
		}
	}
}

type pendingPath struct {
	timer *time.Timer
	seq   uint64
}

// debouncer emits a path on ready once no event for it has arrived for delay.
// Every schedule replaces the path's timer and a timer that fires after being
// replaced is ignored.
type debouncer struct {
	delay time.Duration
	done  <-chan struct{}
	ready chan string

	mu      sync.Mutex
	seq     uint64
	pending map[string]pendingPath
}

func newDebouncer(delay time.Duration, done <-chan struct{}) *debouncer {
	return &debouncer{
		delay:   delay,
		done:    done,
		ready:   make(chan string, 64),
		pending: map[string]pendingPath{},
	}
}

func (d *debouncer) schedule(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending[path] = pendingPath{
		seq:   seq,
		timer: time.AfterFunc(d.delay, func() { d.fire(path, seq) }),
	}
}

func (d *debouncer) fire(path string, seq uint64) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if !ok || p.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.mu.Unlock()

	select {
	case d.ready <- path:
	case <-d.done:
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
}
