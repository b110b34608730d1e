// Package watch ingests files dropped into a directory. New files with a
// supported extension are uploaded and processed one at a time once they
// stop changing; a rewritten file replaces its existing document.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/logger"
)

// DefaultSettle is how long a file must stay unchanged before it is ingested.
const DefaultSettle = 500 * time.Millisecond

// DefaultRetryDelay is the wait before a transient failure is retried.
const DefaultRetryDelay = 5 * time.Second

// maxAttempts bounds how often one version of a file is tried.
const maxAttempts = 3

// Result describes one ingested file.
type Result struct {
	Path     string
	Document *domain.Document
	Err      error
}

// Watcher uploads and processes files that appear in a directory.
type Watcher struct {
	dir        string
	ownerID    string
	docs       driving.DocumentService
	settle     time.Duration
	retryDelay time.Duration
	onResult   func(Result)

	mu    sync.Mutex
	known map[string]string // path -> document ID
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets the quiet period before a changed file is ingested.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithRetryDelay sets the wait before an embedding or storage failure is
// retried.
func WithRetryDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.retryDelay = d
		}
	}
}

// WithResultHandler registers a callback invoked after each file.
func WithResultHandler(fn func(Result)) Option {
	return func(w *Watcher) {
		w.onResult = fn
	}
}

// New creates a watcher for dir. Nothing happens until Run is called.
func New(dir, ownerID string, docs driving.DocumentService, opts ...Option) *Watcher {
	w := &Watcher{
		dir:        dir,
		ownerID:    ownerID,
		docs:       docs,
		settle:     DefaultSettle,
		retryDelay: DefaultRetryDelay,
		known:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run watches until ctx is cancelled. Files are ingested sequentially.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	logger.Info("watching %s", w.dir)

	pending := make(map[string]time.Time)
	attempts := make(map[string]int)
	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.handleFsEvent(event); ok {
				pending[path] = time.Now()
				delete(attempts, path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error: %v", err)

		case now := <-ticker.C:
			for _, path := range settled(pending, now, w.settle) {
				delete(pending, path)
				if ctx.Err() != nil {
					return nil
				}
				r := w.Ingest(ctx, path)
				w.report(r)

				attempts[path]++
				if r.Err != nil && domain.IsRetryable(r.Err) && attempts[path] < maxAttempts && ctx.Err() == nil {
					logger.Info("retrying %s in %s", path, w.retryDelay)
					// Settled once the retry delay has passed.
					pending[path] = now.Add(w.retryDelay - w.settle)
					continue
				}
				delete(attempts, path)
			}
		}
	}
}

// Ingest processes the file at path. The first time a path is seen it is
// uploaded as a new document; later calls replace that document's content
// so reprocessing swaps its chunks instead of adding a second copy.
func (w *Watcher) Ingest(ctx context.Context, path string) Result {
	result := Result{Path: path}

	content, err := os.ReadFile(path)
	if err != nil {
		result.Err = fmt.Errorf("reading %s: %w", path, err)
		return result
	}

	doc, err := w.store(ctx, path, content)
	if err != nil {
		result.Err = err
		return result
	}
	result.Document = doc

	processed, err := w.docs.Process(ctx, w.ownerID, doc.ID)
	if processed != nil {
		result.Document = processed
	}
	if err != nil {
		result.Err = fmt.Errorf("processing %s: %w", path, err)
	}
	return result
}

// store replaces the document already tracked for path, or uploads a new one.
func (w *Watcher) store(ctx context.Context, path string, content []byte) (*domain.Document, error) {
	id, ok := w.documentFor(ctx, path)
	if ok {
		doc, err := w.docs.Replace(ctx, w.ownerID, id, content)
		switch {
		case err == nil:
			return doc, nil
		case errors.Is(err, domain.ErrNotFound):
			logger.Debug("document %s for %s is gone, uploading again", id, path)
		default:
			return nil, fmt.Errorf("replacing %s: %w", path, err)
		}
	}

	doc, err := w.docs.Upload(ctx, w.ownerID, filepath.Base(path), content)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", path, err)
	}

	w.mu.Lock()
	w.known[path] = doc.ID
	w.mu.Unlock()
	return doc, nil
}

// documentFor returns the document tracked for path. After a restart the
// owner's newest document with the same filename is adopted.
func (w *Watcher) documentFor(ctx context.Context, path string) (string, bool) {
	w.mu.Lock()
	id, ok := w.known[path]
	w.mu.Unlock()
	if ok {
		return id, true
	}

	docs, err := w.docs.List(ctx, w.ownerID)
	if err != nil {
		logger.Warn("listing documents: %v", err)
		return "", false
	}
	name := filepath.Base(path)
	for _, d := range docs {
		if d.Filename == name {
			w.mu.Lock()
			w.known[path] = d.ID
			w.mu.Unlock()
			return d.ID, true
		}
	}
	return "", false
}

// handleFsEvent returns the path to ingest for create and write events on
// visible regular files with a supported extension.
func (w *Watcher) handleFsEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}

	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return "", false
	}
	if !domain.IsSupportedExtension(filepath.Ext(name)) {
		return "", false
	}

	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) report(r Result) {
	switch {
	case r.Err == nil:
		logger.Info("ingested %s: %d chunks", r.Path, r.Document.ChunkCount)
	case errors.Is(r.Err, context.Canceled):
		logger.Debug("cancelled %s", r.Path)
	default:
		logger.Error("%v", r.Err)
	}
	if w.onResult != nil {
		w.onResult(r)
	}
}

// settled returns the paths untouched for at least quiet, oldest first.
func settled(pending map[string]time.Time, now time.Time, quiet time.Duration) []string {
	var ready []string
	for path, touched := range pending {
		if now.Sub(touched) >= quiet {
			ready = append(ready, path)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return pending[ready[i]].Before(pending[ready[j]])
	})
	return ready
}
