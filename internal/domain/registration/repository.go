package registration

import (
	"context"
	"errors"
)

// ErrDuplicateID signals a unique-constraint violation on a public team
// or player id. It is permanent; retrying cannot change the outcome.
var ErrDuplicateID = errors.New("duplicate public id")

// Repository describes team persistence needs from use cases. The store
// arbitrates all cross-process races: CreateWithPlayers relies on unique
// constraints, not in-process locks.
type Repository interface {
	// CreateWithPlayers inserts the team and all players in one
	// transaction. Returns ErrDuplicateID when a public id already
	// exists.
	CreateWithPlayers(ctx context.Context, team Team, players []Player) error

	GetByPublicID(ctx context.Context, publicID string) (Team, bool, error)

	ListPlayers(ctx context.Context, teamInternalID string) ([]Player, error)

	// UpdateDecision flips the registration status and rewrites the three
	// team-level URL fields in one transaction.
	UpdateDecision(ctx context.Context, publicID string, status Status, urls FileURLs) error
}
