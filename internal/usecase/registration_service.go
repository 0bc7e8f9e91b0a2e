package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/icctweb/team-registration/internal/domain/blobstore"
	"github.com/icctweb/team-registration/internal/domain/idempotency"
	"github.com/icctweb/team-registration/internal/domain/registration"
	"github.com/icctweb/team-registration/internal/domain/sequence"
	"github.com/icctweb/team-registration/internal/platform/id"
	"github.com/icctweb/team-registration/internal/platform/resilience"
)

const (
	teamIDPrefix   = "ICCT"
	teamIDPadWidth = 3
)

// Mailer sends registration lifecycle emails. Delivery failures never
// fail the operation that triggered them.
type Mailer interface {
	SendRegistrationReceived(ctx context.Context, to, teamID, teamName, captainName string) error
	SendRegistrationApproved(ctx context.Context, to, teamID, teamName, captainName string) error
}

type noopMailer struct{}

func (noopMailer) SendRegistrationReceived(_ context.Context, _, _, _, _ string) error { return nil }
func (noopMailer) SendRegistrationApproved(_ context.Context, _, _, _, _ string) error { return nil }

func NewNoopMailer() Mailer {
	return noopMailer{}
}

type PlayerInput struct {
	Name             string
	Role             string
	AadharCard       []byte
	SubscriptionForm []byte
}

type SubmitRegistrationInput struct {
	IdempotencyKey string
	TeamName       string
	ChurchName     string
	Captain        registration.Contact
	ViceCaptain    registration.Contact
	Players        []PlayerInput
	PaymentReceipt []byte
	PastorLetter   []byte
	GroupPhoto     []byte
}

// RegistrationResult is what the caller gets back, and also the payload
// stored against the idempotency key for replay.
type RegistrationResult struct {
	PublicTeamID string `json:"public_team_id"`
	PlayerCount  int    `json:"player_count"`
	EmailSent    bool   `json:"email_sent"`

	// Replayed marks results served from the idempotency store. It is
	// recomputed per call, never persisted.
	Replayed bool `json:"-"`
}

// RegistrationService runs the submission pipeline: idempotency check,
// validation, public id allocation, document uploads, the relational
// insert, and the confirmation email. Uploads and the insert are
// compensated on later failure; the allocated id is not, so failed
// submissions burn a number.
type RegistrationService struct {
	teamRepo        registration.Repository
	idempotencyRepo idempotency.Repository
	allocator       *SequenceAllocator
	uploader        *UploadOrchestrator
	store           blobstore.Store
	mailer          Mailer
	idGen           id.Generator
	logger          *slog.Logger

	dbRetry        resilience.RetryPolicy
	emailRetry     resilience.RetryPolicy
	idempotencyTTL time.Duration
	now            func() time.Time
}

type RegistrationServiceConfig struct {
	DBRetry        resilience.RetryPolicy
	EmailRetry     resilience.RetryPolicy
	IdempotencyTTL time.Duration
}

func NewRegistrationService(
	teamRepo registration.Repository,
	idempotencyRepo idempotency.Repository,
	allocator *SequenceAllocator,
	uploader *UploadOrchestrator,
	store blobstore.Store,
	mailer Mailer,
	idGen id.Generator,
	logger *slog.Logger,
	cfg RegistrationServiceConfig,
) *RegistrationService {
	if mailer == nil {
		mailer = NewNoopMailer()
	}
	if idGen == nil {
		idGen = id.NewRandomGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}

	return &RegistrationService{
		teamRepo:        teamRepo,
		idempotencyRepo: idempotencyRepo,
		allocator:       allocator,
		uploader:        uploader,
		store:           store,
		mailer:          mailer,
		idGen:           idGen,
		logger:          logger,
		dbRetry:         resilience.NormalizeRetryPolicy(cfg.DBRetry, resilience.DefaultDatabaseRetry()),
		emailRetry:      resilience.NormalizeRetryPolicy(cfg.EmailRetry, resilience.DefaultEmailRetry()),
		idempotencyTTL:  ttl,
		now:             time.Now,
	}
}

func (s *RegistrationService) Submit(ctx context.Context, input SubmitRegistrationInput) (RegistrationResult, error) {
	ctx, span := startUsecaseSpan(ctx, "RegistrationService.Submit")
	defer span.End()

	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		return RegistrationResult{}, fmt.Errorf("%w: idempotency key is required", ErrInvalidInput)
	}

	if replayed, found, err := s.lookupReplay(ctx, key); err != nil {
		return RegistrationResult{}, err
	} else if found {
		s.logger.InfoContext(ctx, "registration replayed from idempotency store", "key", key, "team_id", replayed.PublicTeamID)
		return replayed, nil
	}

	if err := registration.ValidatePlayerCount(len(input.Players)); err != nil {
		return RegistrationResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	team := registration.Team{
		Name:        strings.TrimSpace(input.TeamName),
		ChurchName:  strings.TrimSpace(input.ChurchName),
		Captain:     input.Captain,
		ViceCaptain: input.ViceCaptain,
		Status:      registration.StatusPending,
	}
	if err := team.Validate(); err != nil {
		return RegistrationResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// The counter increment is never compensated. A failure after this
	// point leaves a gap in issued ids, which is acceptable; a duplicate
	// id is not.
	teamID, err := s.allocateTeamID(ctx)
	if err != nil {
		return RegistrationResult{}, err
	}

	uploadResult, err := s.uploader.UploadAll(ctx, teamID, buildUploadPlan(input))
	if err != nil {
		return RegistrationResult{}, err
	}

	team.PublicID = teamID
	team.CreatedAt = s.now().UTC()
	team.PaymentReceiptURL = uploadResult.TeamFileURLs[registration.FieldPaymentReceipt]
	team.PastorLetterURL = uploadResult.TeamFileURLs[registration.FieldPastorLetter]
	team.GroupPhotoURL = uploadResult.TeamFileURLs[registration.FieldGroupPhoto]

	players, err := s.buildPlayers(teamID, &team, input.Players, uploadResult)
	if err != nil {
		s.compensateUploads(ctx, teamID)
		return RegistrationResult{}, err
	}

	if err := s.persist(ctx, team, players); err != nil {
		s.compensateUploads(ctx, teamID)
		return RegistrationResult{}, err
	}

	result := RegistrationResult{
		PublicTeamID: teamID,
		PlayerCount:  len(players),
		EmailSent:    s.sendReceivedEmail(ctx, team),
	}

	s.storeReplay(ctx, key, result)

	return result, nil
}

func (s *RegistrationService) lookupReplay(ctx context.Context, key string) (RegistrationResult, bool, error) {
	now := s.now().UTC()
	if removed, err := s.idempotencyRepo.Sweep(ctx, now); err != nil {
		s.logger.WarnContext(ctx, "idempotency sweep failed", "error", err)
	} else if removed > 0 {
		s.logger.DebugContext(ctx, "idempotency sweep removed expired records", "count", removed)
	}

	payload, found, err := s.idempotencyRepo.Lookup(ctx, key, now)
	if err != nil {
		return RegistrationResult{}, false, fmt.Errorf("%w: idempotency lookup: %v", ErrDatabase, err)
	}
	if !found {
		return RegistrationResult{}, false, nil
	}

	var result RegistrationResult
	if err := sonic.Unmarshal(payload, &result); err != nil {
		return RegistrationResult{}, false, fmt.Errorf("%w: decode stored response for key %q: %v", ErrDatabase, key, err)
	}
	result.Replayed = true
	return result, true, nil
}

func (s *RegistrationService) allocateTeamID(ctx context.Context) (string, error) {
	teamID, err := resilience.Do(ctx, s.dbRetry, resilience.IsTransient, func(ctx context.Context) (string, error) {
		return s.allocator.AllocateNext(ctx, sequence.TeamCounter, teamIDPrefix, teamIDPadWidth)
	})
	if err != nil {
		if errors.Is(err, ErrSequenceNotInitialized) || errors.Is(err, ErrSequenceAllocation) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrSequenceAllocation, err)
	}
	return teamID, nil
}

func (s *RegistrationService) buildPlayers(teamID string, team *registration.Team, inputs []PlayerInput, uploads UploadResult) ([]registration.Player, error) {
	teamInternalID, err := s.idGen.NewID()
	if err != nil {
		return nil, fmt.Errorf("%w: generate team id: %v", ErrDatabase, err)
	}
	team.InternalID = teamInternalID

	players := make([]registration.Player, 0, len(inputs))
	for i, in := range inputs {
		internalID, err := s.idGen.NewID()
		if err != nil {
			return nil, fmt.Errorf("%w: generate player id: %v", ErrDatabase, err)
		}
		slot := i + 1
		player := registration.Player{
			InternalID:     internalID,
			PublicID:       registration.PlayerPublicID(teamID, slot),
			TeamInternalID: teamInternalID,
			Name:           strings.TrimSpace(in.Name),
			Role:           strings.TrimSpace(in.Role),
		}
		if i < len(uploads.PlayerFileURLs) {
			player.AadharFileURL = uploads.PlayerFileURLs[i][registration.FieldAadharCard]
			player.SubscriptionFileURL = uploads.PlayerFileURLs[i][registration.FieldSubscriptionForm]
		}
		players = append(players, player)
	}
	return players, nil
}

func (s *RegistrationService) persist(ctx context.Context, team registration.Team, players []registration.Player) error {
	err := resilience.Retry(ctx, s.dbRetry, resilience.IsTransient, func(ctx context.Context) error {
		return s.teamRepo.CreateWithPlayers(ctx, team, players)
	})
	if err != nil {
		if errors.Is(err, registration.ErrDuplicateID) {
			return fmt.Errorf("%w: team %s", ErrDuplicateRegistration, team.PublicID)
		}
		return fmt.Errorf("%w: insert team %s: %v", ErrDatabase, team.PublicID, err)
	}
	return nil
}

func (s *RegistrationService) sendReceivedEmail(ctx context.Context, team registration.Team) bool {
	to := strings.TrimSpace(team.Captain.Email)
	if to == "" {
		return false
	}

	err := resilience.Retry(ctx, s.emailRetry, resilience.IsTransient, func(ctx context.Context) error {
		return s.mailer.SendRegistrationReceived(ctx, to, team.PublicID, team.Name, team.Captain.Name)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "registration email failed", "team_id", team.PublicID, "error", err)
		return false
	}
	return true
}

// storeReplay records the successful result against the idempotency
// key. The registration already committed, so a write failure here is
// logged and swallowed.
func (s *RegistrationService) storeReplay(ctx context.Context, key string, result RegistrationResult) {
	payload, err := sonic.Marshal(result)
	if err != nil {
		s.logger.WarnContext(ctx, "encode idempotency payload failed", "key", key, "error", err)
		return
	}

	now := s.now().UTC()
	record := idempotency.Record{
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(s.idempotencyTTL),
		Response:  payload,
	}
	if err := s.idempotencyRepo.Store(ctx, record); err != nil {
		s.logger.WarnContext(ctx, "store idempotency record failed", "key", key, "error", err)
	}
}

func (s *RegistrationService) compensateUploads(ctx context.Context, teamID string) {
	cleanupCtx := context.WithoutCancel(ctx)
	prefix := blobstore.PendingPrefix(teamID)
	if err := s.store.DeleteByPrefix(cleanupCtx, prefix); err != nil {
		s.logger.WarnContext(cleanupCtx, "cleanup of uploaded documents failed", "prefix", prefix, "error", err)
		return
	}
	s.logger.InfoContext(cleanupCtx, "removed uploaded documents after failed registration", "prefix", prefix)
}

func buildUploadPlan(input SubmitRegistrationInput) UploadPlan {
	plan := UploadPlan{
		TeamFiles: map[string][]byte{
			registration.FieldPaymentReceipt: input.PaymentReceipt,
			registration.FieldPastorLetter:   input.PastorLetter,
			registration.FieldGroupPhoto:     input.GroupPhoto,
		},
		Players: make([]PlayerUploads, 0, len(input.Players)),
	}
	for i, p := range input.Players {
		plan.Players = append(plan.Players, PlayerUploads{
			Slot: i + 1,
			Files: map[string][]byte{
				registration.FieldAadharCard:       p.AadharCard,
				registration.FieldSubscriptionForm: p.SubscriptionForm,
			},
		})
	}
	return plan
}
