package livedoc

import (
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Source identifies where a text change came from
type Source string

const (
	SourceEdit Source = "edit"
	SourceDisk Source = "disk"
)

// Event describes a change to a document's text
type Event struct {
	Path    string
	OldText string
	NewText string
	Source  Source
}

// Listener receives document change events
type Listener func(Event)

type listenerEntry struct {
	id string
	fn Listener
}

// Document is a mutable text buffer with change listeners
type Document struct {
	path string
	text string
	// dirty marks text set through SetText that is not on disk
	dirty bool
	// missing marks a document whose file no longer exists
	missing   bool
	listeners []listenerEntry
	mu        sync.RWMutex
}

// NewDocument creates a document with initial text
func NewDocument(path, text string) *Document {
	return &Document{
		path: path,
		text: text,
	}
}

// Path returns the document path
func (d *Document) Path() string {
	return d.path
}

// Text returns the current text
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Dirty reports whether the buffer holds edits that are not on disk
func (d *Document) Dirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

// Missing reports whether the document's file was removed
func (d *Document) Missing() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.missing
}

// SetText replaces the text and notifies listeners in subscription order.
// It reports whether the text changed; listeners only fire on a change.
// The buffer is dirty until the next load from disk.
func (d *Document) SetText(text string) bool {
	return d.update(text, SourceEdit, true)
}

// load replaces the text with content that is on disk
func (d *Document) load(text string, source Source) bool {
	return d.update(text, source, false)
}

func (d *Document) markMissing() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.missing = true
}

func (d *Document) update(text string, source Source, dirty bool) bool {
	d.mu.Lock()
	if !dirty {
		d.dirty = false
		d.missing = false
	}
	if d.text == text {
		d.mu.Unlock()
		return false
	}
	if dirty {
		d.dirty = true
	}
	old := d.text
	d.text = text
	listeners := make([]listenerEntry, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.Unlock()

	event := Event{Path: d.path, OldText: old, NewText: text, Source: source}
	for _, l := range listeners {
		l.fn(event)
	}
	return true
}

// Subscribe registers fn for change events
func (d *Document) Subscribe(fn Listener) *Subscription {
	id, _ := gonanoid.New()

	d.mu.Lock()
	d.listeners = append(d.listeners, listenerEntry{id: id, fn: fn})
	d.mu.Unlock()

	return &Subscription{id: id, doc: d}
}

// Listeners returns the number of active subscriptions
func (d *Document) Listeners() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners)
}

func (d *Document) unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, l := range d.listeners {
		if l.id == id {
			d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
			return
		}
	}
}

// Subscription is a handle for a registered listener
type Subscription struct {
	id   string
	doc  *Document
	once sync.Once
}

// ID returns the subscription identifier
func (s *Subscription) ID() string {
	return s.id
}

// Unsubscribe detaches the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.doc.unsubscribe(s.id)
	})
}
