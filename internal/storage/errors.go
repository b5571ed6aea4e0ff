package storage

import "errors"

// Storage errors shared by all history-store backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorruptState is returned when a persisted store cannot be decoded.
	// Callers treat it as fatal at startup: scanning with partial history
	// would re-alert on every known token.
	ErrCorruptState = errors.New("corrupt persisted state")
)
