package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	out, err := Do(t.Context(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, IsTransient, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", MarkTransient(fmt.Errorf("blip %d", calls))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected result: %q", out)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	permanent := errors.New("constraint violation")
	calls := 0
	_, err := Do(t.Context(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, IsTransient, func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent error must not be retried, got %d calls", calls)
	}
	var exhausted *AttemptsError
	if errors.As(err, &exhausted) {
		t.Fatalf("permanent error must not be wrapped as exhaustion: %v", err)
	}
}

func TestDo_ExhaustionCarriesAttemptCount(t *testing.T) {
	transient := MarkTransient(errors.New("still down"))
	calls := 0
	_, err := Do(t.Context(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, IsTransient, func(context.Context) (int, error) {
		calls++
		return 0, transient
	})
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	var exhausted *AttemptsError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected AttemptsError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, transient) {
		t.Fatalf("exhaustion must wrap the last error, got %v", err)
	}
}

func TestDo_ContextDeadlineStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := Do(ctx, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Minute}, IsTransient, func(context.Context) (int, error) {
		calls++
		return 0, MarkTransient(errors.New("slow dependency"))
	})
	if calls != 1 {
		t.Fatalf("expected a single call before the deadline tripped, got %d", calls)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Fatal("nil is not transient")
	}
	if IsTransient(context.DeadlineExceeded) {
		t.Fatal("deadline exceeded must be permanent, the caller is out of patience")
	}
	if !IsTransient(MarkTransient(errors.New("x"))) {
		t.Fatal("marked errors are transient")
	}
	if !IsTransient(fmt.Errorf("wrap: %w", MarkTransient(errors.New("x")))) {
		t.Fatal("marking must survive wrapping")
	}
	if IsTransient(errors.New("validation failed")) {
		t.Fatal("plain errors are permanent")
	}
}
