package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/icctweb/team-registration/internal/domain/sequence"
)

// SequenceRepository is the in-memory counter used in dev mode and
// tests. The mutex plays the role the database row lock plays in the
// postgres implementation.
type SequenceRepository struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewSequenceRepository(seed map[string]int64) *SequenceRepository {
	counters := make(map[string]int64, len(seed))
	for name, value := range seed {
		counters[name] = value
	}
	return &SequenceRepository{counters: counters}
}

func (r *SequenceRepository) Next(_ context.Context, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.counters[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", sequence.ErrNotInitialized, name)
	}
	value++
	r.counters[name] = value
	return value, nil
}

func (r *SequenceRepository) Resync(_ context.Context, name string, observedMax int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.counters[name]
	if !ok {
		return fmt.Errorf("%w: %s", sequence.ErrNotInitialized, name)
	}
	if observedMax > value {
		r.counters[name] = observedMax
	}
	return nil
}

// SeedCounters provisions the sequences a deployment creates by
// migration.
func SeedCounters() map[string]int64 {
	return map[string]int64{
		sequence.TeamCounter: 0,
	}
}
