package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned by every store and operation in place of
	// badger.ErrKeyNotFound, so callers never depend on the backend.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned when an insert hits an existing key.
	// Spent markers rely on it to detect double spends.
	ErrAlreadyExists = errors.New("key already exists")
)
