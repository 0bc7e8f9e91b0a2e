package idempotency

import "time"

// DefaultTTL covers client retry storms (double-submit, timed-out request
// retried by the client) without hiding a legitimately new submission
// that reuses an old key value.
const DefaultTTL = 10 * time.Minute

// Record maps a client-supplied key to the response that was produced
// the first time the operation completed. Records are created once and
// never updated; expiry makes room for key reuse.
type Record struct {
	Key       string
	CreatedAt time.Time
	ExpiresAt time.Time
	Response  []byte
}
