package sequence

import (
	"context"
	"errors"
)

// ErrNotInitialized means the named counter row does not exist.
var ErrNotInitialized = errors.New("sequence counter not initialized")

type Repository interface {
	// Next atomically increments the counter and returns the new value.
	// Implementations must do this in a single statement: two concurrent
	// callers may never observe the same prior value.
	Next(ctx context.Context, name string) (int64, error)

	// Resync raises last_value to observedMax if it is currently lower.
	// Defensive: guards monotonicity against inserts that bypassed the
	// allocator.
	Resync(ctx context.Context, name string, observedMax int64) error
}
