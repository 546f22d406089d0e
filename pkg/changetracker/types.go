package changetracker

import (
	"bytes"
	"context"
	"time"

	"github.com/harun/agentdiff/pkg/diffengine"
)

// Kind classifies a tracked change
type Kind string

const (
	KindAdded    Kind = "added"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
)

// ContentStore reads and mutates file content. Read must return an error
// when the path has no readable content.
type ContentStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Remove(ctx context.Context, path string) error
}

// EditDescriptor describes a search/replace edit about to be applied
type EditDescriptor struct {
	Search     string
	Replace    string
	ReplaceAll bool
}

// WriteDescriptor describes a full-content write about to be applied
type WriteDescriptor struct {
	Content string
}

// Change is the first-observed mutation of a path within a session
type Change struct {
	Path string `json:"path"`
	Kind Kind   `json:"kind"`
	// OriginalContent is nil for added files
	OriginalContent []byte `json:"originalContent,omitempty"`
	// Edit or Write is the operation that first touched the path, if any
	Edit  *EditDescriptor  `json:"edit,omitempty"`
	Write *WriteDescriptor `json:"write,omitempty"`
}

func (c Change) clone() Change {
	c.OriginalContent = bytes.Clone(c.OriginalContent)
	if c.Edit != nil {
		edit := *c.Edit
		c.Edit = &edit
	}
	if c.Write != nil {
		write := *c.Write
		c.Write = &write
	}
	return c
}

// Snapshot is the frozen set of changes of a finished session
type Snapshot struct {
	SessionID string    `json:"sessionId"`
	Changes   []Change  `json:"changes"`
	StartedAt time.Time `json:"startedAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Change returns the change recorded for path
func (s *Snapshot) Change(path string) (Change, bool) {
	path = normalizePath(path)
	for _, c := range s.Changes {
		if c.Path == path {
			return c.clone(), true
		}
	}
	return Change{}, false
}

// Paths returns the changed paths in tracking order
func (s *Snapshot) Paths() []string {
	paths := make([]string, len(s.Changes))
	for i, c := range s.Changes {
		paths[i] = c.Path
	}
	return paths
}

func (s *Snapshot) clone() *Snapshot {
	cp := *s
	cp.Changes = make([]Change, len(s.Changes))
	for i, c := range s.Changes {
		cp.Changes[i] = c.clone()
	}
	return &cp
}

// DiffData is the before/after pair for one changed path
type DiffData struct {
	Path   string           `json:"path"`
	Kind   Kind             `json:"kind"`
	Before string           `json:"before"`
	After  string           `json:"after"`
	Stats  diffengine.Stats `json:"stats"`
}

// Failure describes a path that could not be rolled back
type Failure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// RollbackResult reports the outcome of a rollback
type RollbackResult struct {
	Restored []string  `json:"restored"`
	Failures []Failure `json:"failures,omitempty"`
}

// OK reports whether every path was restored
func (r *RollbackResult) OK() bool {
	return len(r.Failures) == 0
}
