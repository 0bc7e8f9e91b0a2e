package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/icctweb/team-registration/internal/domain/blobstore"
	"github.com/icctweb/team-registration/internal/domain/registration"
	"github.com/icctweb/team-registration/internal/platform/resilience"
)

type ConfirmOutcome string

const (
	OutcomeConfirmed        ConfirmOutcome = "confirmed"
	OutcomeAlreadyConfirmed ConfirmOutcome = "already_confirmed"
)

type ConfirmResult struct {
	Outcome   ConfirmOutcome        `json:"outcome"`
	EmailSent bool                  `json:"email_sent"`
	FileURLs  registration.FileURLs `json:"-"`
}

// ApprovalService drives a registration's moderation decisions. Confirm
// relocates the team-level documents from the pending area to the
// confirmed area and flips the status in one write; Reject wipes the
// pending documents and clears the stored URLs. Both are idempotent
// enough to survive an admin double-click.
type ApprovalService struct {
	teamRepo registration.Repository
	store    blobstore.Store
	mailer   Mailer
	logger   *slog.Logger

	dbRetry    resilience.RetryPolicy
	moveRetry  resilience.RetryPolicy
	emailRetry resilience.RetryPolicy
}

type ApprovalServiceConfig struct {
	DBRetry    resilience.RetryPolicy
	MoveRetry  resilience.RetryPolicy
	EmailRetry resilience.RetryPolicy
}

func NewApprovalService(
	teamRepo registration.Repository,
	store blobstore.Store,
	mailer Mailer,
	logger *slog.Logger,
	cfg ApprovalServiceConfig,
) *ApprovalService {
	if mailer == nil {
		mailer = NewNoopMailer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalService{
		teamRepo:   teamRepo,
		store:      store,
		mailer:     mailer,
		logger:     logger,
		dbRetry:    resilience.NormalizeRetryPolicy(cfg.DBRetry, resilience.DefaultDatabaseRetry()),
		moveRetry:  resilience.NormalizeRetryPolicy(cfg.MoveRetry, resilience.DefaultUploadRetry()),
		emailRetry: resilience.NormalizeRetryPolicy(cfg.EmailRetry, resilience.DefaultEmailRetry()),
	}
}

func (s *ApprovalService) Confirm(ctx context.Context, teamID string) (ConfirmResult, error) {
	ctx, span := startUsecaseSpan(ctx, "ApprovalService.Confirm")
	defer span.End()

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return ConfirmResult{}, err
	}

	switch team.Status {
	case registration.StatusConfirmed:
		return ConfirmResult{
			Outcome: OutcomeAlreadyConfirmed,
			FileURLs: registration.FileURLs{
				PaymentReceipt: team.PaymentReceiptURL,
				PastorLetter:   team.PastorLetterURL,
				GroupPhoto:     team.GroupPhotoURL,
			},
		}, nil
	case registration.StatusRejected:
		return ConfirmResult{}, fmt.Errorf("%w: team %s was rejected and cannot be confirmed", ErrInvalidInput, teamID)
	}

	// Moves already performed stay in place when a later one fails; a
	// retried Confirm picks up where this one stopped because the store
	// treats a finished move as success.
	urls, err := s.migrateTeamFiles(ctx, team)
	if err != nil {
		return ConfirmResult{}, err
	}

	err = resilience.Retry(ctx, s.dbRetry, resilience.IsTransient, func(ctx context.Context) error {
		return s.teamRepo.UpdateDecision(ctx, team.PublicID, registration.StatusConfirmed, urls)
	})
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: confirm team %s: %v", ErrDatabase, teamID, err)
	}

	return ConfirmResult{
		Outcome:   OutcomeConfirmed,
		EmailSent: s.sendApprovedEmail(ctx, team),
		FileURLs:  urls,
	}, nil
}

func (s *ApprovalService) Reject(ctx context.Context, teamID string) error {
	ctx, span := startUsecaseSpan(ctx, "ApprovalService.Reject")
	defer span.End()

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return err
	}

	// Rejection is an admin override and is valid from any status. An
	// already-empty pending area makes the delete a no-op.
	prefix := blobstore.PendingPrefix(team.PublicID)
	err = resilience.Retry(ctx, s.moveRetry, resilience.IsTransient, func(ctx context.Context) error {
		return s.store.DeleteByPrefix(ctx, prefix)
	})
	if err != nil {
		return fmt.Errorf("%w: delete pending documents for team %s: %v", ErrFileMigration, teamID, err)
	}

	err = resilience.Retry(ctx, s.dbRetry, resilience.IsTransient, func(ctx context.Context) error {
		return s.teamRepo.UpdateDecision(ctx, team.PublicID, registration.StatusRejected, registration.FileURLs{})
	})
	if err != nil {
		return fmt.Errorf("%w: reject team %s: %v", ErrDatabase, teamID, err)
	}

	s.logger.InfoContext(ctx, "registration rejected", "team_id", team.PublicID, "previous_status", string(team.Status))
	return nil
}

func (s *ApprovalService) loadTeam(ctx context.Context, teamID string) (registration.Team, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return registration.Team{}, fmt.Errorf("%w: team id is required", ErrInvalidInput)
	}

	team, err := resilience.Do(ctx, s.dbRetry, resilience.IsTransient, func(ctx context.Context) (teamLookup, error) {
		t, ok, err := s.teamRepo.GetByPublicID(ctx, teamID)
		return teamLookup{team: t, found: ok}, err
	})
	if err != nil {
		return registration.Team{}, fmt.Errorf("%w: load team %s: %v", ErrDatabase, teamID, err)
	}
	if !team.found {
		return registration.Team{}, fmt.Errorf("%w: team %s", ErrNotFound, teamID)
	}
	return team.team, nil
}

type teamLookup struct {
	team  registration.Team
	found bool
}

func (s *ApprovalService) migrateTeamFiles(ctx context.Context, team registration.Team) (registration.FileURLs, error) {
	current := registration.FileURLs{
		PaymentReceipt: team.PaymentReceiptURL,
		PastorLetter:   team.PastorLetterURL,
		GroupPhoto:     team.GroupPhotoURL,
	}.Fields()

	urls := registration.FileURLs{}
	for _, field := range []string{registration.FieldPaymentReceipt, registration.FieldPastorLetter, registration.FieldGroupPhoto} {
		if current[field] == "" {
			continue
		}
		src := blobstore.PendingPath(team.PublicID, field)
		dst := blobstore.ConfirmedPath(team.PublicID, field)

		url, err := resilience.Do(ctx, s.moveRetry, resilience.IsTransient, func(ctx context.Context) (string, error) {
			return s.store.Move(ctx, src, dst)
		})
		if err != nil {
			return registration.FileURLs{}, fmt.Errorf("%w: move %s for team %s: %v", ErrFileMigration, field, team.PublicID, err)
		}

		switch field {
		case registration.FieldPaymentReceipt:
			urls.PaymentReceipt = url
		case registration.FieldPastorLetter:
			urls.PastorLetter = url
		case registration.FieldGroupPhoto:
			urls.GroupPhoto = url
		}
	}
	return urls, nil
}

func (s *ApprovalService) sendApprovedEmail(ctx context.Context, team registration.Team) bool {
	to := strings.TrimSpace(team.Captain.Email)
	if to == "" {
		return false
	}

	err := resilience.Retry(ctx, s.emailRetry, resilience.IsTransient, func(ctx context.Context) error {
		return s.mailer.SendRegistrationApproved(ctx, to, team.PublicID, team.Name, team.Captain.Name)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "approval email failed", "team_id", team.PublicID, "error", err)
		return false
	}
	return true
}
