package entity

import "errors"

// Error taxonomy for engine operations. Handlers map these to HTTP status
// codes; everything here is recoverable by the caller.
var (
	// ErrValidation is returned for malformed or disallowed input
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization is returned when the actor lacks permission or is not
	// the current approver/owner
	ErrAuthorization = errors.New("not authorized")

	// ErrInvalidState is returned when an action is attempted from a status
	// that forbids it
	ErrInvalidState = errors.New("invalid state for action")

	// ErrNotFound is returned for unknown expense/organization/user/rule ids
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an optimistic version check fails because
	// a concurrent operation already applied a transition
	ErrConflict = errors.New("version conflict")
)
