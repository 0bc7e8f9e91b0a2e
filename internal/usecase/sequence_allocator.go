package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/icctweb/team-registration/internal/domain/sequence"
)

// SequenceAllocator hands out unique, monotonically increasing public
// identifiers backed by a named database counter. Allocation is a single atomic increment; an
// allocated value is never returned to the pool, so later failures in
// the caller leave a gap in issued IDs but never a duplicate.
type SequenceAllocator struct {
	repo sequence.Repository
}

func NewSequenceAllocator(repo sequence.Repository) *SequenceAllocator {
	return &SequenceAllocator{repo: repo}
}

// AllocateNext increments the named counter and formats the result as
// prefix-paddedvalue, e.g. ("team", "ICCT", 3) with last value 6 yields
// "ICCT-007". Values wider than padWidth keep all their digits.
func (a *SequenceAllocator) AllocateNext(ctx context.Context, name, prefix string, padWidth int) (string, error) {
	ctx, span := startUsecaseSpan(ctx, "SequenceAllocator.AllocateNext")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: sequence name is required", ErrInvalidInput)
	}

	value, err := a.repo.Next(ctx, name)
	if err != nil {
		if errors.Is(err, sequence.ErrNotInitialized) {
			return "", fmt.Errorf("%w: counter %q has no row", ErrSequenceNotInitialized, name)
		}
		return "", fmt.Errorf("%w: counter %q: %w", ErrSequenceAllocation, name, err)
	}

	return FormatSequenceID(prefix, padWidth, value), nil
}

// Resync raises the named counter to at least observedMax. It never
// lowers the counter, so concurrent allocations stay safe.
func (a *SequenceAllocator) Resync(ctx context.Context, name string, observedMax int64) error {
	ctx, span := startUsecaseSpan(ctx, "SequenceAllocator.Resync")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: sequence name is required", ErrInvalidInput)
	}

	if err := a.repo.Resync(ctx, name, observedMax); err != nil {
		if errors.Is(err, sequence.ErrNotInitialized) {
			return fmt.Errorf("%w: counter %q has no row", ErrSequenceNotInitialized, name)
		}
		return fmt.Errorf("%w: resync counter %q: %w", ErrSequenceAllocation, name, err)
	}
	return nil
}

// FormatSequenceID renders a counter value as a public identifier.
func FormatSequenceID(prefix string, padWidth int, value int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, padWidth, value)
}
