package repository

import "errors"

// Sentinel errors callers test with errors.Is.
var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoActiveSession is returned when a user has no active session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrTooManyActiveSessions is returned when a user owns more than one
	// active session. The at-most-one invariant is enforced at query time,
	// so a violation surfaces here instead of being silently resolved.
	ErrTooManyActiveSessions = errors.New("too many active sessions")
)
