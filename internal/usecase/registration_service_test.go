package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icctweb/team-registration/internal/domain/registration"
	"github.com/icctweb/team-registration/internal/domain/sequence"
	"github.com/icctweb/team-registration/internal/infrastructure/repository/memory"
	"github.com/icctweb/team-registration/internal/infrastructure/storage"
	"github.com/icctweb/team-registration/internal/platform/resilience"
)

type recordingMailer struct {
	mu       sync.Mutex
	received []string
	approved []string
	fail     bool
}

func (m *recordingMailer) SendRegistrationReceived(_ context.Context, to, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp relay down")
	}
	m.received = append(m.received, to)
	return nil
}

func (m *recordingMailer) SendRegistrationApproved(_ context.Context, to, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp relay down")
	}
	m.approved = append(m.approved, to)
	return nil
}

type registrationFixture struct {
	service  *RegistrationService
	teamRepo *memory.TeamRepository
	idemRepo *memory.IdempotencyRepository
	seqRepo  *memory.SequenceRepository
	store    *storage.MemoryStore
	mailer   *recordingMailer
}

func newRegistrationFixture(t *testing.T, seed map[string]int64) *registrationFixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store := storage.NewMemoryStore()
	teamRepo := memory.NewTeamRepository()
	idemRepo := memory.NewIdempotencyRepository()
	seqRepo := memory.NewSequenceRepository(seed)
	mail := &recordingMailer{}

	fastRetry := resilience.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}
	uploader := NewUploadOrchestrator(store, fastRetry, 4, logger)
	service := NewRegistrationService(
		teamRepo,
		idemRepo,
		NewSequenceAllocator(seqRepo),
		uploader,
		store,
		mail,
		nil,
		logger,
		RegistrationServiceConfig{DBRetry: fastRetry, EmailRetry: fastRetry},
	)

	return &registrationFixture{
		service:  service,
		teamRepo: teamRepo,
		idemRepo: idemRepo,
		seqRepo:  seqRepo,
		store:    store,
		mailer:   mail,
	}
}

func validSubmitInput(key string, playerCount int) SubmitRegistrationInput {
	players := make([]PlayerInput, 0, playerCount)
	for i := 0; i < playerCount; i++ {
		players = append(players, PlayerInput{
			Name:             fmt.Sprintf("Player %d", i+1),
			Role:             "batsman",
			AadharCard:       []byte("aadhar"),
			SubscriptionForm: []byte("subscription"),
		})
	}
	return SubmitRegistrationInput{
		IdempotencyKey: key,
		TeamName:       "Grace Strikers",
		ChurchName:     "Grace Community Church",
		Captain:        registration.Contact{Name: "John Doe", Phone: "9000000001", Email: "captain@example.com"},
		ViceCaptain:    registration.Contact{Name: "Sam Lee", Phone: "9000000002", Email: "vice@example.com"},
		Players:        players,
		PaymentReceipt: []byte("receipt"),
		PastorLetter:   []byte("letter"),
		GroupPhoto:     []byte("photo"),
	}
}

func TestSubmitHappyPath(t *testing.T) {
	fx := newRegistrationFixture(t, map[string]int64{sequence.TeamCounter: 0})

	result, err := fx.service.Submit(context.Background(), validSubmitInput("key-1", 11))
	require.NoError(t, err)

	assert.Equal(t, "ICCT-001", result.PublicTeamID)
	assert.Equal(t, 11, result.PlayerCount)
	assert.True(t, result.EmailSent)
	assert.False(t, result.Replayed)

	team, found, err := fx.teamRepo.GetByPublicID(context.Background(), "ICCT-001")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, registration.StatusPending, team.Status)
	assert.Contains(t, team.PaymentReceiptURL, "pending/ICCT-001/payment_receipt")

	players, err := fx.teamRepo.ListPlayers(context.Background(), team.InternalID)
	require.NoError(t, err)
	require.Len(t, players, 11)
	assert.Equal(t, "ICCT-001-P01", players[0].PublicID)
	assert.Contains(t, players[0].AadharFileURL, "pending/ICCT-001/player_01_aadhar_card")

	// 3 team files + 2 per player.
	assert.Equal(t, 25, fx.store.CountByPrefix("pending/ICCT-001/"))
	assert.Equal(t, []string{"captain@example.com"}, fx.mailer.received)
	assert.Equal(t, 1, fx.idemRepo.Len())
}

func TestSubmitReplaysStoredResult(t *testing.T) {
	fx := newRegistrationFixture(t, map[string]int64{sequence.TeamCounter: 0})

	first, err := fx.service.Submit(context.Background(), validSubmitInput("key-1", 11))
	require.NoError(t, err)

	second, err := fx.service.Submit(context.Background(), validSubmitInput("key-1", 11))
	require.NoError(t, err)

	assert.Equal(t, first.PublicTeamID, second.PublicTeamID)
	assert.True(t, second.Replayed)
	assert.Equal(t, 1, fx.teamRepo.TeamCount())
	assert.Len(t, fx.mailer.received, 1)
}

func TestSubmitRejectsBadPlayerCount(t *testing.T) {
	fx := newRegistrationFixture(t, map[string]int64{sequence.TeamCounter: 0})

	_, err := fx.service.Submit(context.Background(), validSubmitInput("key-1", 10))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = fx.service.Submit(context.Background(), validSubmitInput("key-2", 16))
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Validation failures must not burn sequence numbers.
	result, err := fx.service.Submit(context.Background(), validSubmitInput("key-3", 11))
	require.NoError(t, err)
	assert.Equal(t, "ICCT-001", result.PublicTeamID)
}

func TestSubmitDuplicateRegistrationCompensatesUploads(t *testing.T) {
	fx := newRegistrationFixture(t, map[string]int64{sequence.TeamCounter: 0})

	require.NoError(t, fx.teamRepo.CreateWithPlayers(context.Background(), registration.Team{
		InternalID: "existing-internal",
		PublicID:   "ICCT-001",
		Name:       "Existing Team",
		ChurchName: "Existing Church",
		Captain:    registration.Contact{Name: "A"},
		Status:     registration.StatusPending,
	}, nil))

	_, err := fx.service.Submit(context.Background(), validSubmitInput("key-1", 11))
	require.ErrorIs(t, err, ErrDuplicateRegistration)

	assert.Equal(t, 0, fx.store.CountByPrefix("pending/ICCT-001/"))
	assert.Equal(t, 0, fx.idemRepo.Len())
	assert.Empty(t, fx.mailer.received)
}

func TestSubmitEmailFailureIsNotFatal(t *testing.T) {
	fx := newRegistrationFixture(t, map[string]int64{sequence.TeamCounter: 0})
	fx.mailer.fail = true

	result, err := fx.service.Submit(context.Background(), validSubmitInput("key-1", 11))
	require.NoError(t, err)
	assert.False(t, result.EmailSent)
	assert.Equal(t, 1, fx.teamRepo.TeamCount())
	// The failed outcome is still recorded for replay.
	assert.Equal(t, 1, fx.idemRepo.Len())
}

func TestSubmitUninitializedSequence(t *testing.T) {
	fx := newRegistrationFixture(t, nil)

	_, err := fx.service.Submit(context.Background(), validSubmitInput("key-1", 11))
	assert.ErrorIs(t, err, ErrSequenceNotInitialized)
	assert.Equal(t, 0, fx.teamRepo.TeamCount())
}
