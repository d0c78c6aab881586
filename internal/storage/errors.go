package storage

import "errors"

// Storage errors shared by all TransferStore implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a transfer
	// whose signature already exists. Transfers are immutable once written.
	ErrDuplicateKey = errors.New("duplicate key: transfer already recorded")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
