package session

import "errors"

var (
	// ErrNotFound is returned when a refresh hash or session id does not
	// resolve to an active session. Missing, expired, revoked, and replaced
	// sessions are deliberately indistinguishable to callers.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidInput is returned for structurally invalid arguments.
	ErrInvalidInput = errors.New("invalid session input")
)
