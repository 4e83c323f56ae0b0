package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	// ErrNotFound is returned when no entry has the requested id.
	ErrNotFound = errors.New("entry not found")
	// ErrStorage wraps every I/O failure of the underlying database.
	ErrStorage = errors.New("storage error")
)
