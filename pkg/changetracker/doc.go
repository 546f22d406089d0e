// Package changetracker records file mutations made by an agent inside
// bounded sessions and makes them reversible.
//
// Each session holds at most one Change per path. The first tracking call for
// a path captures the file's original content before the caller mutates it;
// later calls for the same path are no-ops. Finishing a session freezes its
// changes into a Snapshot, which backs diff views and rollback.
//
// Invariants:
// - At most one Change per (session, path)
// - Original content is captured exactly once, before the mutation
// - Added iff the path had no readable content at tracking time
// - Cancellation of a tracking call never leaves a partial Change
//
// Usage:
//
//	t, _ := changetracker.New(store, changetracker.Options{})
//	_ = t.StartSession(ctx, "run-1")
//	_ = t.TrackWrite(ctx, "run-1", "main.go", changetracker.WriteDescriptor{Content: src})
//	// ... caller writes main.go ...
//	snap, _ := t.FinishSession(ctx, "run-1")
//	result, _ := t.Rollback(ctx, snap.SessionID)
package changetracker
