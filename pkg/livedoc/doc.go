// Package livedoc keeps in-memory buffers for files that are open for
// preview or tracking, and keeps them in sync with disk.
//
// A Registry hands out one Document per path. Documents fire change events to
// their subscribers whenever their text changes, either through SetText or
// because the file was modified outside the process (observed via fsnotify).
//
// The Registry also serves as the content accessor for change tracking: reads
// prefer an open buffer over disk, so unsaved edits are what gets captured.
package livedoc
