package store

import "errors"

var (
	// ErrValidation indicates a candidate document violates the schema.
	// Nothing is changed when it is returned.
	ErrValidation = errors.New("validation failed")
	// ErrStorage indicates a filesystem read or write failed. In-memory
	// state may run ahead of persisted state until the next successful
	// write.
	ErrStorage = errors.New("storage failure")
	// ErrNotFound indicates the addressed class has no attendance entry.
	ErrNotFound = errors.New("no attendance for class")
)
