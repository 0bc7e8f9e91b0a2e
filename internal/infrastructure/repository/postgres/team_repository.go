package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/icctweb/team-registration/internal/domain/registration"
	qb "github.com/icctweb/team-registration/internal/platform/querybuilder"
)

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) CreateWithPlayers(ctx context.Context, team registration.Team, players []registration.Player) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classifyErr(fmt.Errorf("begin registration tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	teamModel := struct {
		InternalID        string    `db:"internal_id"`
		PublicID          string    `db:"public_id"`
		TeamName          string    `db:"team_name"`
		ChurchName        string    `db:"church_name"`
		CaptainName       string    `db:"captain_name"`
		CaptainPhone      string    `db:"captain_phone"`
		CaptainEmail      string    `db:"captain_email"`
		ViceCaptainName   string    `db:"vice_captain_name"`
		ViceCaptainPhone  string    `db:"vice_captain_phone"`
		ViceCaptainEmail  string    `db:"vice_captain_email"`
		PaymentReceiptURL *string   `db:"payment_receipt_url"`
		PastorLetterURL   *string   `db:"pastor_letter_url"`
		GroupPhotoURL     *string   `db:"group_photo_url"`
		Status            string    `db:"registration_status"`
		CreatedAt         time.Time `db:"created_at"`
	}{
		InternalID:        team.InternalID,
		PublicID:          team.PublicID,
		TeamName:          team.Name,
		ChurchName:        team.ChurchName,
		CaptainName:       team.Captain.Name,
		CaptainPhone:      team.Captain.Phone,
		CaptainEmail:      team.Captain.Email,
		ViceCaptainName:   team.ViceCaptain.Name,
		ViceCaptainPhone:  team.ViceCaptain.Phone,
		ViceCaptainEmail:  team.ViceCaptain.Email,
		PaymentReceiptURL: optionalString(team.PaymentReceiptURL),
		PastorLetterURL:   optionalString(team.PastorLetterURL),
		GroupPhotoURL:     optionalString(team.GroupPhotoURL),
		Status:            string(team.Status),
		CreatedAt:         team.CreatedAt.UTC(),
	}

	query, args, err := qb.InsertModel("teams", teamModel, "")
	if err != nil {
		return fmt.Errorf("build insert team query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: team %s", registration.ErrDuplicateID, team.PublicID)
		}
		return classifyErr(fmt.Errorf("insert team %s: %w", team.PublicID, err))
	}

	if len(players) > 0 {
		builder := qb.InsertInto("players").Columns(
			"internal_id",
			"public_id",
			"team_internal_id",
			"name",
			"role",
			"aadhar_file_url",
			"subscription_file_url",
		)
		for _, player := range players {
			builder.Values(
				player.InternalID,
				player.PublicID,
				team.InternalID,
				player.Name,
				player.Role,
				optionalString(player.AadharFileURL),
				optionalString(player.SubscriptionFileURL),
			)
		}
		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert players query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: players of team %s", registration.ErrDuplicateID, team.PublicID)
			}
			return classifyErr(fmt.Errorf("insert players of team %s: %w", team.PublicID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyErr(fmt.Errorf("commit registration tx: %w", err))
	}
	return nil
}

func (r *TeamRepository) GetByPublicID(ctx context.Context, publicID string) (registration.Team, bool, error) {
	query, args, err := qb.Select("*").
		From("teams").
		Where(qb.Eq("public_id", publicID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return registration.Team{}, false, fmt.Errorf("build get team query: %w", err)
	}

	var row teamTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return registration.Team{}, false, nil
		}
		return registration.Team{}, false, classifyErr(fmt.Errorf("get team %s: %w", publicID, err))
	}

	return teamFromRow(row), true, nil
}

func (r *TeamRepository) ListPlayers(ctx context.Context, teamInternalID string) ([]registration.Player, error) {
	query, args, err := qb.Select("*").
		From("players").
		Where(qb.Eq("team_internal_id", teamInternalID)).
		OrderBy("public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list players query: %w", err)
	}

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classifyErr(fmt.Errorf("list players of team %s: %w", teamInternalID, err))
	}

	out := make([]registration.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, playerFromRow(row))
	}
	return out, nil
}

func (r *TeamRepository) UpdateDecision(ctx context.Context, publicID string, status registration.Status, urls registration.FileURLs) error {
	query, args, err := qb.Update("teams").
		Set("registration_status", string(status)).
		Set("payment_receipt_url", optionalString(urls.PaymentReceipt)).
		Set("pastor_letter_url", optionalString(urls.PastorLetter)).
		Set("group_photo_url", optionalString(urls.GroupPhoto)).
		Where(qb.Eq("public_id", publicID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update decision query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return classifyErr(fmt.Errorf("update decision of team %s: %w", publicID, err))
	}
	return nil
}
