package idempotency

import (
	"context"
	"time"
)

type Repository interface {
	// Lookup returns the stored response for key, or found=false when no
	// live (unexpired) record exists.
	Lookup(ctx context.Context, key string, now time.Time) ([]byte, bool, error)

	// Store inserts the record. When a record for the key already exists
	// the existing one wins and Store returns nil: first-writer-wins is
	// the only concurrency guarantee duplicate submissions need.
	Store(ctx context.Context, record Record) error

	// Sweep deletes expired records and reports how many were removed.
	// Safe to call opportunistically before every Lookup.
	Sweep(ctx context.Context, now time.Time) (int64, error)
}
