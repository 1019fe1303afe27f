// Package apperrors defines the error taxonomy shared by the services and
// repositories. Callers classify failures with errors.Is so the HTTP layer
// can map them to status codes without string matching.
package apperrors

import "errors"

var (
	// ErrNotFound - a referenced entity does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidQuantity - a requested quantity or allocation is not a
	// positive integer (or a price is malformed).
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInsufficientInventory - a requested quantity exceeds the
	// ticket's remaining sellable count.
	ErrInsufficientInventory = errors.New("not enough tickets remaining")

	// ErrCapacityExceeded - a catalog-time allocation would exceed the
	// event area capacity.
	ErrCapacityExceeded = errors.New("area capacity exceeded")

	// ErrUnauthorized - the capability check rejected the actor.
	ErrUnauthorized = errors.New("operation is forbidden for user")

	// ErrConflict - a concurrent modification was detected, or the
	// entity is in a state that forbids the operation. Transient lock
	// conflicts are retried internally before this surfaces.
	ErrConflict = errors.New("conflicting concurrent modification")
)
