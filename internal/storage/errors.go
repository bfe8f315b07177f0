package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint would be violated,
	// such as registering an already-taken username.
	ErrDuplicate = errors.New("record already exists")
)
