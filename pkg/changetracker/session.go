package changetracker

import (
	"context"
	"sync"
	"time"
)

// session holds the changes of one active tracking session
type session struct {
	id        string
	startedAt time.Time
	changes   map[string]*Change
	order     []string
	pending   map[string]chan struct{}
	finished  bool
	mu        sync.Mutex
}

func newSession(id string, startedAt time.Time) *session {
	return &session{
		id:        id,
		startedAt: startedAt,
		changes:   make(map[string]*Change),
		pending:   make(map[string]chan struct{}),
	}
}

// claim reserves path for capturing its original content. It returns true
// when the caller holds the claim and must call settle. It returns false when
// a change already exists; existing, if set, is then applied to it under the
// session lock. Callers waiting on another claim give up when ctx is done.
func (s *session) claim(ctx context.Context, path string, existing func(*session, *Change)) (bool, error) {
	for {
		s.mu.Lock()
		if s.finished {
			s.mu.Unlock()
			return false, ErrSessionNotFound
		}
		if c, ok := s.changes[path]; ok {
			if existing != nil {
				existing(s, c)
			}
			s.mu.Unlock()
			return false, nil
		}
		wait, busy := s.pending[path]
		if !busy {
			s.pending[path] = make(chan struct{})
			s.mu.Unlock()
			return true, nil
		}
		s.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// settle releases the claim on path and records change when it is non-nil
func (s *session) settle(path string, change *Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wait, ok := s.pending[path]; ok {
		close(wait)
		delete(s.pending, path)
	}
	if change == nil {
		return nil
	}
	if s.finished {
		return ErrSessionNotFound
	}
	s.changes[path] = change
	s.order = append(s.order, path)
	return nil
}

// drop removes the change for path. Caller holds s.mu.
func (s *session) drop(path string) {
	delete(s.changes, path)
	for i, p := range s.order {
		if p == path {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *session) change(path string) (Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.changes[path]
	if !ok {
		return Change{}, false
	}
	return c.clone(), true
}

// changesInOrder returns copies of all changes in tracking order
func (s *session) changesInOrder() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changesLocked()
}

func (s *session) changesLocked() []Change {
	out := make([]Change, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, s.changes[p].clone())
	}
	return out
}

// freeze marks the session finished and returns its snapshot
func (s *session) freeze(now time.Time) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finished = true
	return &Snapshot{
		SessionID: s.id,
		Changes:   s.changesLocked(),
		StartedAt: s.startedAt,
		CreatedAt: now,
	}
}
