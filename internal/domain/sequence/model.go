package sequence

import "time"

// Counter is the singleton row backing one named monotonic sequence.
// last_value only ever increases; a value handed out is never handed out
// again, even when the registration that claimed it fails later.
type Counter struct {
	Name      string
	LastValue int64
	UpdatedAt time.Time
}

// TeamCounter is the sequence backing public team ids. It must be
// provisioned by migration, never lazily, so first use cannot race.
const TeamCounter = "team"
