package blobstore

import "context"

// Store is the opaque content store the pipeline talks to. Every call is
// a network call that can fail independently; callers wrap them with the
// retry executor.
type Store interface {
	// Upload writes content at path and returns its public URL. The path
	// is deterministic per (team, field), so a retried upload overwrites
	// its own previous attempt instead of duplicating it.
	Upload(ctx context.Context, path string, content []byte) (string, error)

	// Move relocates src to dst and returns dst's URL. A missing source
	// with an existing destination is a success: a retried confirm must
	// tolerate moves that already happened.
	Move(ctx context.Context, src, dst string) (string, error)

	// Delete removes the object at path. An already-absent object is a
	// success, which keeps rollback and re-rejection idempotent.
	Delete(ctx context.Context, path string) error

	// DeleteByPrefix removes every object under prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// Two-phase file lifecycle: documents live under pending/ until an
// approval decision relocates (confirm) or deletes (reject) them.

func PendingPrefix(teamID string) string {
	return "pending/" + teamID + "/"
}

func PendingPath(teamID, field string) string {
	return PendingPrefix(teamID) + field
}

func ConfirmedPath(teamID, field string) string {
	return "confirmed/" + teamID + "/" + teamID + "_" + field
}
