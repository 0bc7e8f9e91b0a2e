package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/icctweb/team-registration/internal/domain/registration"
)

type TeamRepository struct {
	mu      sync.Mutex
	teams   map[string]registration.Team     // keyed by public id
	players map[string][]registration.Player // keyed by team internal id
}

func NewTeamRepository() *TeamRepository {
	return &TeamRepository{
		teams:   make(map[string]registration.Team),
		players: make(map[string][]registration.Player),
	}
}

func (r *TeamRepository) CreateWithPlayers(_ context.Context, team registration.Team, players []registration.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.teams[team.PublicID]; exists {
		return fmt.Errorf("%w: team %s", registration.ErrDuplicateID, team.PublicID)
	}
	seen := make(map[string]struct{}, len(players))
	for _, player := range players {
		if _, dup := seen[player.PublicID]; dup {
			return fmt.Errorf("%w: players of team %s", registration.ErrDuplicateID, team.PublicID)
		}
		seen[player.PublicID] = struct{}{}
	}

	r.teams[team.PublicID] = team
	stored := make([]registration.Player, len(players))
	copy(stored, players)
	r.players[team.InternalID] = stored
	return nil
}

func (r *TeamRepository) GetByPublicID(_ context.Context, publicID string) (registration.Team, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	team, ok := r.teams[publicID]
	return team, ok, nil
}

func (r *TeamRepository) ListPlayers(_ context.Context, teamInternalID string) ([]registration.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := r.players[teamInternalID]
	out := make([]registration.Player, len(players))
	copy(out, players)
	sort.Slice(out, func(i, j int) bool { return out[i].PublicID < out[j].PublicID })
	return out, nil
}

func (r *TeamRepository) UpdateDecision(_ context.Context, publicID string, status registration.Status, urls registration.FileURLs) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	team, ok := r.teams[publicID]
	if !ok {
		return fmt.Errorf("team %s does not exist", publicID)
	}
	team.Status = status
	team.PaymentReceiptURL = urls.PaymentReceipt
	team.PastorLetterURL = urls.PastorLetter
	team.GroupPhotoURL = urls.GroupPhoto
	r.teams[publicID] = team
	return nil
}

// TeamCount reports stored teams; used by tests.
func (r *TeamRepository) TeamCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.teams)
}
