package changetracker

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/agentdiff/internal/observability"
	"github.com/harun/agentdiff/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Rollback restores every path changed in the session: added files are
// removed, modified and deleted files get their original content back.
// Failures are collected per path and never stop the remaining restores.
//
// For a finished session, a full success clears the snapshot and a partial
// one keeps only the failed changes. For an active session, restored paths
// are dropped from the session so later calls capture them afresh.
func (t *Tracker) Rollback(ctx context.Context, sessionID string) (*RollbackResult, error) {
	return t.rollback(ctx, "tracker.rollback", sessionID, nil)
}

// RollbackFile restores a single path of the session
func (t *Tracker) RollbackFile(ctx context.Context, sessionID, path string) (*RollbackResult, error) {
	path = normalizePath(path)
	return t.rollback(ctx, "tracker.rollback_file", sessionID, func(c Change) bool {
		return c.Path == path
	})
}

func (t *Tracker) rollback(ctx context.Context, op, sessionID string, match func(Change) bool) (*RollbackResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx, span := tracing.StartSpan(ctx, tracerName, op, attribute.String("session_id", sessionID))
	defer span.End()
	logger := t.logger(ctx)
	start := time.Now()

	t.mu.RLock()
	s, active := t.sessions[sessionID]
	snapshot, finished := t.snapshots[sessionID]
	t.mu.RUnlock()

	var changes []Change
	switch {
	case active:
		changes = s.changesInOrder()
	case finished:
		changes = snapshot.clone().Changes
	default:
		err := fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		tracing.RecordError(span, err)
		return nil, err
	}

	targets := changes
	if match != nil {
		targets = targets[:0:0]
		for _, c := range changes {
			if match(c) {
				targets = append(targets, c)
			}
		}
		if len(targets) == 0 {
			err := ErrChangeNotFound
			tracing.RecordError(span, err)
			return nil, err
		}
	}

	result := &RollbackResult{Restored: make([]string, 0, len(targets))}
	for _, c := range targets {
		if err := t.restore(ctx, c); err != nil {
			result.Failures = append(result.Failures, Failure{Path: c.Path, Reason: err.Error(), Err: err})
			logger.Warn().Err(err).Str("path", c.Path).Str("kind", string(c.Kind)).Msg("Failed to restore path")
			continue
		}
		result.Restored = append(result.Restored, c.Path)
	}

	restored := make(map[string]bool, len(result.Restored))
	for _, p := range result.Restored {
		restored[p] = true
	}

	if active {
		s.mu.Lock()
		for p := range restored {
			s.drop(p)
		}
		s.mu.Unlock()
	} else {
		t.mu.Lock()
		if current, ok := t.snapshots[sessionID]; ok && current == snapshot {
			remaining := make([]Change, 0, len(current.Changes))
			for _, c := range current.Changes {
				if !restored[c.Path] {
					remaining = append(remaining, c)
				}
			}
			if len(remaining) == 0 {
				delete(t.snapshots, sessionID)
			} else {
				next := *current
				next.Changes = remaining
				t.snapshots[sessionID] = &next
			}
		}
		t.mu.Unlock()
	}

	status := "success"
	if !result.OK() {
		status = "partial"
	}
	observability.RecordRollback(time.Since(start), len(result.Failures))
	observability.RecordRollbackAudit(ctx, sessionID, status, map[string]interface{}{
		"restored": len(result.Restored),
		"failed":   len(result.Failures),
	})
	span.SetAttributes(
		attribute.Int("restored", len(result.Restored)),
		attribute.Int("failed", len(result.Failures)),
	)
	logger.Info().
		Int("restored", len(result.Restored)).
		Int("failed", len(result.Failures)).
		Msg("Rollback completed")

	return result, nil
}

// restore reverts a single change through the store
func (t *Tracker) restore(ctx context.Context, c Change) error {
	switch c.Kind {
	case KindAdded:
		return t.store.Remove(ctx, c.Path)
	case KindModified, KindDeleted:
		if c.OriginalContent == nil {
			return ErrMissingOriginal
		}
		return t.store.Write(ctx, c.Path, c.OriginalContent)
	default:
		return fmt.Errorf("unknown change kind %q", c.Kind)
	}
}
