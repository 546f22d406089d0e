package changetracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/agentdiff/internal/observability"
	"github.com/harun/agentdiff/internal/tracing"
	"github.com/harun/agentdiff/pkg/diffengine"
	"github.com/harun/agentdiff/pkg/livedoc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "agentdiff.changetracker"

// Options configures a Tracker
type Options struct {
	// IgnorePatterns are doublestar globs for paths that are never tracked.
	// DefaultIgnorePatterns is used when nil.
	IgnorePatterns []string
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Tracker records file changes per session and produces snapshots
type Tracker struct {
	store     ContentStore
	filter    *pathFilter
	now       func() time.Time
	sessions  map[string]*session
	snapshots map[string]*Snapshot
	mu        sync.RWMutex
}

// New creates a Tracker that captures and restores content through store
func New(store ContentStore, opts Options) (*Tracker, error) {
	observability.EnsureRegistered()

	if store == nil {
		return nil, fmt.Errorf("content store is required")
	}

	patterns := opts.IgnorePatterns
	if patterns == nil {
		patterns = DefaultIgnorePatterns
	}
	filter, err := newPathFilter(patterns)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Tracker{
		store:     store,
		filter:    filter,
		now:       now,
		sessions:  make(map[string]*session),
		snapshots: make(map[string]*Snapshot),
	}, nil
}

// validateSessionID validates a session id
func validateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: cannot be empty", ErrInvalidSessionID)
	}
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("%w: cannot contain null bytes", ErrInvalidSessionID)
	}
	return nil
}

// logger returns the global logger tagged with the session and path carried by ctx
func (t *Tracker) logger(ctx context.Context) zerolog.Logger {
	return tracing.LoggerFromContext(ctx, log.Logger)
}

// StartSession begins tracking under id. Starting an id that has a finished
// snapshot discards that snapshot.
func (t *Tracker) StartSession(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionID(ctx, id)
	ctx, span := tracing.StartSpan(ctx, tracerName, "tracker.start_session", attribute.String("session_id", id))
	defer span.End()

	if err := validateSessionID(id); err != nil {
		tracing.RecordError(span, err)
		return err
	}

	t.mu.Lock()
	if _, exists := t.sessions[id]; exists {
		t.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrDuplicateSession, id)
		tracing.RecordError(span, err)
		return err
	}
	t.sessions[id] = newSession(id, t.now())
	delete(t.snapshots, id)
	active := len(t.sessions)
	t.mu.Unlock()

	observability.SetActiveSessions(active)
	observability.RecordSessionAudit(ctx, "start", id, nil)
	logger := t.logger(ctx)
	logger.Info().Msg("Session started")
	return nil
}

func (t *Tracker) activeSession(id string) (*session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// recreated turns a path deleted earlier in the session back into a
// modification of its original content.
func recreated(_ *session, c *Change) {
	if c.Kind == KindDeleted {
		c.Kind = KindModified
	}
}

// TrackEdit records path as modified with the supplied original content,
// unless the session already tracks it. A path deleted earlier in the session
// becomes modified.
func (t *Tracker) TrackEdit(ctx context.Context, sessionID, path string, edit EditDescriptor, originalContent []byte) error {
	original := bytes.Clone(originalContent)
	if original == nil {
		original = []byte{}
	}

	return t.track(ctx, "tracker.track_edit", sessionID, path, recreated, func(ctx context.Context, path string) (*Change, error) {
		return &Change{Path: path, Kind: KindModified, OriginalContent: original, Edit: &edit}, nil
	})
}

// TrackWrite records path before a full-content write. The current content
// is read through the store: unreadable paths are recorded as added,
// readable ones as modified. A path deleted earlier in the session becomes
// modified.
func (t *Tracker) TrackWrite(ctx context.Context, sessionID, path string, write WriteDescriptor) error {
	return t.track(ctx, "tracker.track_write", sessionID, path, recreated, func(ctx context.Context, path string) (*Change, error) {
		data, err := t.readOriginal(ctx, path)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return &Change{Path: path, Kind: KindAdded, Write: &write}, nil
		}
		return &Change{Path: path, Kind: KindModified, OriginalContent: data, Write: &write}, nil
	})
}

// TrackDelete records path before it is deleted. An untracked path with no
// readable content is ignored. A path added earlier in the session is
// dropped from the session, and a modified one becomes deleted while keeping
// its original content.
func (t *Tracker) TrackDelete(ctx context.Context, sessionID, path string) error {
	existing := func(s *session, c *Change) {
		switch c.Kind {
		case KindAdded:
			s.drop(c.Path)
		case KindModified:
			c.Kind = KindDeleted
		}
	}

	return t.track(ctx, "tracker.track_delete", sessionID, path, existing, func(ctx context.Context, path string) (*Change, error) {
		data, err := t.readOriginal(ctx, path)
		if err != nil || data == nil {
			return nil, err
		}
		return &Change{Path: path, Kind: KindDeleted, OriginalContent: data}, nil
	})
}

// readOriginal reads the current content of path. It returns nil data when
// the path has no readable content, and an error only for cancellation.
func (t *Tracker) readOriginal(ctx context.Context, path string) ([]byte, error) {
	data, err := t.store.Read(ctx, path)
	if err == nil {
		if data == nil {
			data = []byte{}
		}
		return data, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !errors.Is(err, livedoc.ErrNotFound) {
		observability.RecordContentReadError()
		log.Debug().Err(err).Str("path", path).Msg("Treating unreadable path as absent")
	}
	return nil, nil
}

// track runs the first-writer-wins protocol for path. capture is called at
// most once per path per session and only by the claim holder; its result is
// committed only if it is non-nil and ctx was not cancelled meanwhile.
func (t *Tracker) track(
	ctx context.Context,
	op, sessionID, rawPath string,
	onExisting func(*session, *Change),
	capture func(ctx context.Context, path string) (*Change, error),
) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path := normalizePath(rawPath)
	ctx = tracing.WithPath(tracing.WithSessionID(ctx, sessionID), path)
	ctx, span := tracing.StartSpan(ctx, tracerName, op,
		attribute.String("session_id", sessionID),
		attribute.String("path", path),
	)
	defer span.End()

	s, err := t.activeSession(sessionID)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	if !t.filter.trackable(path) {
		span.SetAttributes(attribute.Bool("ignored", true))
		return nil
	}

	claimed, err := s.claim(ctx, path, onExisting)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if !claimed {
		span.SetAttributes(attribute.Bool("already_tracked", true))
		return nil
	}

	change, err := capture(ctx, path)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = s.settle(path, nil)
		tracing.RecordError(span, err)
		return err
	}

	if err := s.settle(path, change); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("%w: %s", err, sessionID)
	}
	if change == nil {
		return nil
	}

	observability.RecordChangeTracked(string(change.Kind))
	span.SetAttributes(attribute.String("kind", string(change.Kind)))
	logger := t.logger(ctx)
	logger.Debug().Str("kind", string(change.Kind)).Msg("Change tracked")
	return nil
}

// FinishSession freezes the session into a snapshot and ends it. The snapshot
// is retained for GetDiffData and Rollback until ClearSnapshot.
func (t *Tracker) FinishSession(ctx context.Context, id string) (*Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionID(ctx, id)
	ctx, span := tracing.StartSpan(ctx, tracerName, "tracker.finish_session", attribute.String("session_id", id))
	defer span.End()

	t.mu.Lock()
	s, ok := t.sessions[id]
	if !ok {
		t.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		tracing.RecordError(span, err)
		return nil, err
	}
	delete(t.sessions, id)
	snapshot := s.freeze(t.now())
	t.snapshots[id] = snapshot
	active := len(t.sessions)
	t.mu.Unlock()

	observability.SetActiveSessions(active)
	observability.RecordSnapshot()
	observability.RecordSessionAudit(ctx, "finish", id, map[string]interface{}{
		"changes": len(snapshot.Changes),
	})
	span.SetAttributes(attribute.Int("changes", len(snapshot.Changes)))
	logger := t.logger(ctx)
	logger.Info().Int("changes", len(snapshot.Changes)).Msg("Session finished")

	return snapshot.clone(), nil
}

// Snapshot returns a copy of the retained snapshot of a finished session
func (t *Tracker) Snapshot(id string) (*Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.snapshots[id]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// ClearSnapshot discards the retained snapshot of a finished session
func (t *Tracker) ClearSnapshot(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.snapshots, id)
}

// IsRollbackAvailable reports whether a finished session has changes to roll back
func (t *Tracker) IsRollbackAvailable(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.snapshots[id]
	return ok && len(s.Changes) > 0
}

// ActiveSessions returns the ids of active sessions, sorted
func (t *Tracker) ActiveSessions() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// lookupChange finds the change for path in an active session or a retained snapshot
func (t *Tracker) lookupChange(sessionID, path string) (Change, error) {
	t.mu.RLock()
	s, active := t.sessions[sessionID]
	snapshot, finished := t.snapshots[sessionID]
	t.mu.RUnlock()

	var (
		c  Change
		ok bool
	)
	switch {
	case active:
		c, ok = s.change(path)
	case finished:
		c, ok = snapshot.Change(path)
	default:
		return Change{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if !ok {
		return Change{}, fmt.Errorf("%w: %s", ErrChangeNotFound, path)
	}
	return c, nil
}

// GetDiffData returns the original and current content of a changed path.
// Before is empty for added files; after is empty for deleted or missing ones.
func (t *Tracker) GetDiffData(ctx context.Context, sessionID, path string) (*DiffData, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	path = normalizePath(path)
	ctx, span := tracing.StartSpan(ctx, tracerName, "tracker.get_diff_data",
		attribute.String("session_id", sessionID),
		attribute.String("path", path),
	)
	defer span.End()

	change, err := t.lookupChange(sessionID, path)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	data := &DiffData{Path: path, Kind: change.Kind}
	if change.Kind != KindAdded {
		data.Before = string(change.OriginalContent)
	}

	if change.Kind != KindDeleted {
		current, err := t.store.Read(ctx, path)
		switch {
		case err == nil:
			data.After = string(current)
		case errors.Is(err, livedoc.ErrNotFound):
		default:
			observability.RecordContentReadError()
			tracing.RecordError(span, err)
			return nil, fmt.Errorf("failed to read current content of %s: %w", path, err)
		}
	}

	data.Stats = diffengine.LineDiffStats(data.Before, data.After)
	return data, nil
}
