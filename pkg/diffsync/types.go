package diffsync

import "context"

// View is a two-sided diff preview. Views must be comparable, typically pointers.
type View interface {
	// Left returns the original text
	Left() string
	// Right returns the proposed text
	Right() string
	// SetRight replaces the proposed text
	SetRight(text string)
	// Rediff recomputes the view's diff after SetRight
	Rediff()
	// Replacement returns the edit the view previews
	Replacement() (search, replace string, ok bool)
}

// Event notifies a change to a document
type Event struct {
	Path string
}

// Subscription detaches a document listener
type Subscription interface {
	Unsubscribe()
}

// Document is a live text buffer that reports changes
type Document interface {
	Text() string
	Subscribe(fn func(Event)) Subscription
}

// Resolver opens the live document for a path
type Resolver interface {
	Resolve(ctx context.Context, path string) (Document, error)
}

// Scheduler runs work off the caller's goroutine. Foreground work runs one
// task at a time in submission order.
type Scheduler interface {
	Background(fn func(ctx context.Context))
	Foreground(fn func(ctx context.Context))
}
