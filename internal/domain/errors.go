package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for common business logic failures.
var (
	ErrNotFound        = errors.New("requested resource not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrInvalidInput    = errors.New("invalid input")
	ErrPersistence     = errors.New("persistence failed")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrUnauthenticated = errors.New("authentication error")
	// ErrSessionReplaced is returned for commands sent on a connection that a
	// newer connection of the same user has superseded.
	ErrSessionReplaced = errors.New("session replaced by a newer connection")
)
