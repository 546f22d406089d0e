package diffsync

import (
	"context"
	"errors"
	"sync"
)

// previewView is an in-memory View
type previewView struct {
	left, right     string
	search, replace string
	rediffs         int
	mu              sync.Mutex
}

func newPreview(left, right, search, replace string) *previewView {
	return &previewView{left: left, right: right, search: search, replace: replace}
}

func (v *previewView) Left() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.left
}

func (v *previewView) Right() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.right
}

func (v *previewView) SetRight(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.right = text
}

func (v *previewView) Rediff() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rediffs++
}

func (v *previewView) Replacement() (string, string, bool) {
	return v.search, v.replace, v.search != "" || v.replace != ""
}

func (v *previewView) rediffCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rediffs
}

// fakeDocument fires listeners synchronously on set
type fakeDocument struct {
	text      string
	listeners map[int]func(Event)
	nextID    int
	mu        sync.Mutex
}

func newFakeDocument(text string) *fakeDocument {
	return &fakeDocument{text: text, listeners: make(map[int]func(Event))}
}

func (d *fakeDocument) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

func (d *fakeDocument) Subscribe(fn func(Event)) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.listeners[id] = fn
	return &fakeSubscription{doc: d, id: id}
}

func (d *fakeDocument) listenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

func (d *fakeDocument) set(text string) {
	d.mu.Lock()
	d.text = text
	fns := make([]func(Event), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(Event{Path: "doc"})
	}
}

type fakeSubscription struct {
	doc *fakeDocument
	id  int
}

func (s *fakeSubscription) Unsubscribe() {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	delete(s.doc.listeners, s.id)
}

var errMissing = errors.New("missing")

// fakeResolver serves documents from a map and counts resolutions
type fakeResolver struct {
	docs  map[string]*fakeDocument
	calls int
	mu    sync.Mutex
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{docs: make(map[string]*fakeDocument)}
}

func (r *fakeResolver) add(path string, doc *fakeDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[path] = doc
}

func (r *fakeResolver) Resolve(ctx context.Context, path string) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	doc, ok := r.docs[path]
	if !ok {
		return nil, errMissing
	}
	return doc, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// inlineScheduler runs everything on the calling goroutine
type inlineScheduler struct{}

func (inlineScheduler) Background(fn func(ctx context.Context)) { fn(context.Background()) }
func (inlineScheduler) Foreground(fn func(ctx context.Context)) { fn(context.Background()) }

// manualScheduler queues work until the test drains it
type manualScheduler struct {
	background []func(ctx context.Context)
	foreground []func(ctx context.Context)
	mu         sync.Mutex
}

func (s *manualScheduler) Background(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.background = append(s.background, fn)
}

func (s *manualScheduler) Foreground(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foreground = append(s.foreground, fn)
}

// runBackground runs the queued background tasks, not ones they enqueue
func (s *manualScheduler) runBackground() {
	s.mu.Lock()
	tasks := s.background
	s.background = nil
	s.mu.Unlock()
	for _, fn := range tasks {
		fn(context.Background())
	}
}

func (s *manualScheduler) runForeground() {
	s.mu.Lock()
	tasks := s.foreground
	s.foreground = nil
	s.mu.Unlock()
	for _, fn := range tasks {
		fn(context.Background())
	}
}

// drain runs until both queues are empty
func (s *manualScheduler) drain() {
	for {
		s.mu.Lock()
		empty := len(s.background) == 0 && len(s.foreground) == 0
		s.mu.Unlock()
		if empty {
			return
		}
		s.runBackground()
		s.runForeground()
	}
}
