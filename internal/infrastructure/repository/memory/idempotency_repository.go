package memory

import (
	"context"
	"sync"
	"time"

	"github.com/icctweb/team-registration/internal/domain/idempotency"
)

type IdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]idempotency.Record
}

func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{records: make(map[string]idempotency.Record)}
}

func (r *IdempotencyRepository) Lookup(_ context.Context, key string, now time.Time) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[key]
	if !ok || !record.ExpiresAt.After(now) {
		return nil, false, nil
	}
	return record.Response, true, nil
}

func (r *IdempotencyRepository) Store(_ context.Context, record idempotency.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// First-writer-wins: a lost race is a successful no-op.
	if _, exists := r.records[record.Key]; exists {
		return nil
	}
	r.records[record.Key] = record
	return nil
}

func (r *IdempotencyRepository) Sweep(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for key, record := range r.records {
		if record.ExpiresAt.Before(now) {
			delete(r.records, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports live record count; used by tests.
func (r *IdempotencyRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
