package delivery

import "errors"

// Stable failure classes. Validation and authorization failures are
// detected before any mutation; callers map them to HTTP statuses.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)
