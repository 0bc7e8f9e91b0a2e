package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icctweb/team-registration/internal/domain/sequence"
	"github.com/icctweb/team-registration/internal/infrastructure/repository/memory"
)

func TestSequenceAllocatorFormatsWithPadding(t *testing.T) {
	repo := memory.NewSequenceRepository(map[string]int64{sequence.TeamCounter: 6})
	allocator := NewSequenceAllocator(repo)

	first, err := allocator.AllocateNext(context.Background(), sequence.TeamCounter, "ICCT", 3)
	require.NoError(t, err)
	assert.Equal(t, "ICCT-007", first)

	second, err := allocator.AllocateNext(context.Background(), sequence.TeamCounter, "ICCT", 3)
	require.NoError(t, err)
	assert.Equal(t, "ICCT-008", second)
}

func TestSequenceAllocatorKeepsWideValues(t *testing.T) {
	repo := memory.NewSequenceRepository(map[string]int64{sequence.TeamCounter: 999})
	allocator := NewSequenceAllocator(repo)

	id, err := allocator.AllocateNext(context.Background(), sequence.TeamCounter, "ICCT", 3)
	require.NoError(t, err)
	assert.Equal(t, "ICCT-1000", id)
}

func TestSequenceAllocatorUninitializedCounter(t *testing.T) {
	allocator := NewSequenceAllocator(memory.NewSequenceRepository(nil))

	_, err := allocator.AllocateNext(context.Background(), "missing", "ICCT", 3)
	assert.ErrorIs(t, err, ErrSequenceNotInitialized)
}

func TestSequenceAllocatorConcurrentAllocationsAreDistinct(t *testing.T) {
	repo := memory.NewSequenceRepository(map[string]int64{sequence.TeamCounter: 0})
	allocator := NewSequenceAllocator(repo)

	const workers = 32
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			id, err := allocator.AllocateNext(context.Background(), sequence.TeamCounter, "ICCT", 3)
			assert.NoError(t, err)
			ids[slot] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, workers)
	for _, id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "id %s allocated twice", id)
		seen[id] = struct{}{}
	}
}

func TestSequenceAllocatorResyncNeverLowers(t *testing.T) {
	repo := memory.NewSequenceRepository(map[string]int64{sequence.TeamCounter: 41})
	allocator := NewSequenceAllocator(repo)

	require.NoError(t, allocator.Resync(context.Background(), sequence.TeamCounter, 10))
	id, err := allocator.AllocateNext(context.Background(), sequence.TeamCounter, "ICCT", 3)
	require.NoError(t, err)
	assert.Equal(t, "ICCT-042", id)

	require.NoError(t, allocator.Resync(context.Background(), sequence.TeamCounter, 100))
	id, err = allocator.AllocateNext(context.Background(), sequence.TeamCounter, "ICCT", 3)
	require.NoError(t, err)
	assert.Equal(t, "ICCT-101", id)
}
