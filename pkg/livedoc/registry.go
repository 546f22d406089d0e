package livedoc

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/agentdiff/internal/observability"
	"github.com/harun/agentdiff/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by a Registry after Close
var ErrClosed = errors.New("registry closed")

// Config configures a Registry
type Config struct {
	// Watch enables reloading open documents on external file changes
	Watch bool
	// Debounce is the quiet period before an external change is applied
	Debounce time.Duration
}

// Registry tracks open documents, one per path
type Registry struct {
	store   *DiskStore
	docs    map[string]*Document
	group   singleflight.Group
	watcher *fileWatcher
	closed  bool
	mu      sync.RWMutex
}

// NewRegistry creates a Registry backed by store
func NewRegistry(store *DiskStore, cfg Config) (*Registry, error) {
	observability.EnsureRegistered()

	if store == nil {
		store = NewDiskStore()
	}

	r := &Registry{
		store: store,
		docs:  make(map[string]*Document),
	}

	if cfg.Watch {
		w, err := newFileWatcher(cfg.Debounce, r.reload)
		if err != nil {
			return nil, err
		}
		r.watcher = w
	}

	return r, nil
}

// normalizePath returns the absolute, cleaned form of path
func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// Resolve returns the open document for path, loading it from disk on first
// use. Concurrent first calls for the same path share a single load.
func (r *Registry) Resolve(ctx context.Context, path string) (*Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	key := normalizePath(path)

	ctx, span := tracing.StartSpan(ctx, "agentdiff.livedoc", "livedoc.resolve", attribute.String("path", key))
	defer span.End()

	if doc, ok := r.Lookup(key); ok && !doc.Missing() {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return doc, nil
	}

	resultI, err, _ := r.group.Do(key, func() (any, error) {
		// Double-check inside singleflight
		if doc, ok := r.Lookup(key); ok && !doc.Missing() {
			return doc, nil
		}

		data, err := r.store.Read(ctx, key)
		if err != nil {
			return nil, err
		}
		return r.open(key, string(data))
	})
	if err != nil {
		observability.RecordResolveFailure()
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	doc, ok := resultI.(*Document)
	if !ok {
		err := fmt.Errorf("unexpected type from resolve: got %T", resultI)
		tracing.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))
	return doc, nil
}

// open registers a document for key with text read from disk. A document
// already open under key, such as one whose file was removed and recreated,
// is reloaded in place so its subscribers keep receiving changes.
func (r *Registry) open(key, text string) (*Document, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if doc, ok := r.docs[key]; ok {
		r.mu.Unlock()
		doc.load(text, SourceDisk)
		return doc, nil
	}

	doc := NewDocument(key, text)
	if r.watcher != nil {
		if err := r.watcher.add(key); err != nil {
			log.Warn().Err(err).Str("path", key).Msg("External changes will not be observed")
		}
	}
	r.docs[key] = doc
	count := len(r.docs)
	r.mu.Unlock()

	observability.SetDocumentsOpen(count)
	log.Debug().Str("path", key).Msg("Document opened")
	return doc, nil
}

// Lookup returns the open document for path without loading it
func (r *Registry) Lookup(path string) (*Document, bool) {
	key := normalizePath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, false
	}
	doc, ok := r.docs[key]
	return doc, ok
}

// Release drops the open document for path. Existing subscriptions stay
// attached to the released document but receive no further disk updates.
func (r *Registry) Release(path string) {
	r.forget(normalizePath(path))
}

// Open returns the number of open documents
func (r *Registry) Open() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Read returns the live content of path. A buffer with unsaved edits wins;
// otherwise the file is read from disk and the open buffer, if any, is
// brought up to date with it.
func (r *Registry) Read(ctx context.Context, path string) ([]byte, error) {
	key := normalizePath(path)
	doc, open := r.Lookup(key)
	if open && doc.Dirty() {
		return []byte(doc.Text()), nil
	}

	data, err := r.store.Read(ctx, key)
	if open {
		r.refresh(doc, data, err)
	}
	return data, err
}

// Write stores content on disk and refreshes the open buffer, if any
func (r *Registry) Write(ctx context.Context, path string, data []byte) error {
	key := normalizePath(path)
	if err := r.store.Write(ctx, key, data); err != nil {
		return err
	}
	if doc, ok := r.Lookup(key); ok {
		doc.load(string(data), SourceEdit)
	}
	return nil
}

// Remove deletes path from disk. An open document stays registered, marked
// missing, and picks the file up again if it is recreated.
func (r *Registry) Remove(ctx context.Context, path string) error {
	key := normalizePath(path)
	if err := r.store.Remove(ctx, key); err != nil {
		return err
	}
	if doc, ok := r.Lookup(key); ok {
		doc.markMissing()
	}
	return nil
}

// reload applies an external change to the open document for path
func (r *Registry) reload(path string) {
	doc, ok := r.Lookup(path)
	if !ok {
		return
	}

	data, err := r.store.Read(context.Background(), doc.Path())
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Str("path", doc.Path()).Msg("Failed to reload document")
		return
	}
	if r.refresh(doc, data, err) {
		log.Debug().Str("path", doc.Path()).Msg("Document reloaded from disk")
	}
}

// refresh brings doc in line with the result of reading its file. A missing
// file marks the document missing and keeps its last text.
func (r *Registry) refresh(doc *Document, data []byte, err error) bool {
	switch {
	case err == nil:
		return doc.load(string(data), SourceDisk)
	case errors.Is(err, ErrNotFound):
		if !doc.Missing() {
			log.Debug().Str("path", doc.Path()).Msg("Document removed from disk")
		}
		doc.markMissing()
	}
	return false
}

func (r *Registry) forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[key]; !ok {
		return
	}
	delete(r.docs, key)
	if r.watcher != nil {
		r.watcher.remove(key)
	}
	observability.SetDocumentsOpen(len(r.docs))
}

// Close stops watching and drops all open documents
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	clear(r.docs)
	r.mu.Unlock()

	observability.SetDocumentsOpen(0)

	if r.watcher != nil {
		return r.watcher.stop()
	}
	return nil
}
