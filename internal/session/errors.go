package session

import "errors"

// Sentinel errors for session operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoSession is returned by Publish before a session handle exists,
	// or forever after session creation failed.
	ErrNoSession = errors.New("session: no session handle")

	// ErrNotConnected is returned by Publish while the session is not live.
	ErrNotConnected = errors.New("session: not connected")

	// ErrSessionCreate is returned by Run when the handle cannot be created.
	// It is fatal: the supervisor never retries.
	ErrSessionCreate = errors.New("session: failed to create session")

	// ErrSessionStart is returned by Run when the handle refuses to start.
	ErrSessionStart = errors.New("session: failed to start session")

	// ErrAlreadyRun is returned by a second call to Run.
	ErrAlreadyRun = errors.New("session: supervisor already run")
)
