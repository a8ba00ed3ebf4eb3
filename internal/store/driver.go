// Package store provides persistence driver abstractions and the shared
// repository errors.
package store

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use. Concrete drivers
// additionally expose the domain repositories; consumers assert the
// accessor interface they need.
type Driver interface {
	// Init initializes the driver (create tables, run migrations).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (sqlite, memory).
	Name() string
}
