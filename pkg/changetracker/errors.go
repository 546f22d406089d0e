package changetracker

import "errors"

var (
	// ErrDuplicateSession is returned when starting a session that is already active
	ErrDuplicateSession = errors.New("session already active")
	// ErrSessionNotFound is returned for unknown or finished sessions
	ErrSessionNotFound = errors.New("session not found")
	// ErrChangeNotFound is returned when a session has no change for a path
	ErrChangeNotFound = errors.New("change not found")
	// ErrInvalidSessionID is returned for malformed session ids
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrMissingOriginal is reported when a change cannot be restored because
	// its original content was never captured
	ErrMissingOriginal = errors.New("missing original content")
)
