// Package diffsync keeps diff previews of a proposed edit in sync with the
// live document they preview.
//
// Any number of views may preview the same file. The Manager holds a single
// document subscription per path, created when the first view registers and
// released when the last one leaves. Each document change re-applies every
// view's search/replace pair to the new live text, best effort: a view whose
// anchor was edited away simply stays as it is.
//
// Document resolution and reconciliation run on the scheduler's background
// lane. Installing listeners and writing preview buffers run on the
// foreground lane.
package diffsync
