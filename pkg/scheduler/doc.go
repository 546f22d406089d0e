// Package scheduler provides lane-based task execution with FIFO ordering per lane.
//
// Two lanes exist by default: a single-concurrency foreground lane that plays
// the role of the UI-affine thread, and a background lane for blocking work
// such as content reads and document resolution.
//
// Invariants:
// - Tasks in the same lane start in FIFO order.
// - The foreground lane runs at most one task at a time.
// - Tasks in different lanes may execute concurrently.
// - Queue activity is observable through metrics.
//
// Usage:
//
//	s := scheduler.New(4)
//	defer s.Close()
//	s.Background(func(ctx context.Context) {
//		doc, err := resolve(ctx)
//		s.Foreground(func(ctx context.Context) { install(doc, err) })
//	})
package scheduler
