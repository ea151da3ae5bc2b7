package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrTransient is returned when the store could not be reached or asked
	// the caller to retry (connection loss, timeouts, serialization failures).
	ErrTransient = errors.New("transient store failure")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("entity already exists")

	// ErrCommitUnknown is returned when a transaction commit was issued but its
	// outcome could not be confirmed.
	ErrCommitUnknown = errors.New("transaction commit outcome unknown")
)
