package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates rejected input; nothing was persisted.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates a status transition not allowed from the current state.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrInsufficientStock indicates a stock check failed during confirmation.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUniquenessConflict indicates a number already taken within the owning unit.
	ErrUniquenessConflict = errors.New("uniqueness conflict")
	// ErrCrossTenant indicates access to another unit's record without all-units scope.
	ErrCrossTenant = errors.New("cross-unit access denied")
	// ErrForbidden indicates the principal's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated indicates a request without a principal.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrConflict indicates a concurrent operation holds the resource.
	ErrConflict = errors.New("operation in progress")
)
