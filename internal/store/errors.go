package store

import "errors"

var (
	// ErrInit means the backing database could not be opened or migrated.
	ErrInit = errors.New("storage initialization failed")
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("record not found")
)
