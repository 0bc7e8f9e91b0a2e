package resilience

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"
)

// RetryPolicy drives exponential backoff: attempt N sleeps
// BaseDelay * 2^(N-1) before the next try. MaxAttempts counts the first
// call, so {MaxAttempts: 3} means at most three calls total.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// Classifier reports whether an error is transient and worth retrying.
type Classifier func(error) bool

// AttemptsError is returned once the retry budget is exhausted or the
// caller's context expires mid-backoff. Err is the last operation error
// (or the context error when the deadline tripped first).
type AttemptsError struct {
	Attempts int
	Err      error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *AttemptsError) Unwrap() error {
	return e.Err
}

// Do runs op under the policy. Permanent errors (per classify) are
// surfaced immediately without consuming the retry budget. The op itself
// must be idempotent or made idempotent by the caller; Do cannot know.
func Do[T any](ctx context.Context, policy RetryPolicy, classify Classifier, op func(context.Context) (T, error)) (T, error) {
	var zero T

	policy = policy.normalize()
	if classify == nil {
		classify = IsTransient
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !classify(err) {
			return zero, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.BaseDelay << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &AttemptsError{Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	return zero, &AttemptsError{Attempts: policy.MaxAttempts, Err: lastErr}
}

// Retry is Do for operations without a result value.
func Retry(ctx context.Context, policy RetryPolicy, classify Classifier, op func(context.Context) error) error {
	_, err := Do(ctx, policy, classify, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient tags an error so IsTransient recognizes it regardless of
// its concrete type. Used by adapters that already know a failure class
// is retryable (HTTP 5xx, pq connection classes).
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient is the default classifier: network-level failures and
// explicitly marked errors retry, everything else is permanent. Context
// cancellation is never transient, the caller's patience has run out.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var marked *transientError
	if errors.As(err, &marked) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	return false
}
