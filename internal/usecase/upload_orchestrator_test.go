package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icctweb/team-registration/internal/domain/blobstore"
	"github.com/icctweb/team-registration/internal/infrastructure/storage"
	"github.com/icctweb/team-registration/internal/platform/resilience"
)

// flakyStore wraps the in-memory store and fails uploads whose path
// contains any configured fragment.
type flakyStore struct {
	*storage.MemoryStore

	mu            sync.Mutex
	failFragments []string
	prefixErr     error
	deleted       []string
}

func (s *flakyStore) Upload(ctx context.Context, path string, content []byte) (string, error) {
	s.mu.Lock()
	fragments := append([]string(nil), s.failFragments...)
	s.mu.Unlock()
	for _, fragment := range fragments {
		if strings.Contains(path, fragment) {
			return "", errors.New("upload rejected")
		}
	}
	return s.MemoryStore.Upload(ctx, path, content)
}

func (s *flakyStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, path)
	s.mu.Unlock()
	return s.MemoryStore.Delete(ctx, path)
}

func (s *flakyStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	err := s.prefixErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.DeleteByPrefix(ctx, prefix)
}

func newTestOrchestrator(store blobstore.Store) *UploadOrchestrator {
	policy := resilience.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}
	return NewUploadOrchestrator(store, policy, 4, slog.New(slog.DiscardHandler))
}

func TestUploadAllStoresTeamAndPlayerFiles(t *testing.T) {
	store := storage.NewMemoryStore()
	orchestrator := newTestOrchestrator(store)

	plan := UploadPlan{
		TeamFiles: map[string][]byte{
			"payment_receipt": []byte("receipt"),
			"pastor_letter":   []byte("letter"),
			"group_photo":     nil,
		},
		Players: []PlayerUploads{
			{Slot: 1, Files: map[string][]byte{"aadhar_card": []byte("a1"), "subscription_form": []byte("s1")}},
			{Slot: 2, Files: map[string][]byte{"aadhar_card": []byte("a2")}},
		},
	}

	result, err := orchestrator.UploadAll(context.Background(), "ICCT-007", plan)
	require.NoError(t, err)

	assert.Len(t, result.TeamFileURLs, 2)
	assert.Contains(t, result.TeamFileURLs["payment_receipt"], "pending/ICCT-007/payment_receipt")
	assert.NotContains(t, result.TeamFileURLs, "group_photo")

	require.Len(t, result.PlayerFileURLs, 2)
	assert.Contains(t, result.PlayerFileURLs[0]["aadhar_card"], "pending/ICCT-007/player_01_aadhar_card")
	assert.Contains(t, result.PlayerFileURLs[0]["subscription_form"], "pending/ICCT-007/player_01_subscription_form")
	assert.Contains(t, result.PlayerFileURLs[1]["aadhar_card"], "pending/ICCT-007/player_02_aadhar_card")

	assert.Equal(t, 5, store.CountByPrefix("pending/ICCT-007/"))
}

func TestUploadAllRollsBackOnTeamFileFailure(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), failFragments: []string{"payment_receipt"}}
	orchestrator := newTestOrchestrator(store)

	plan := UploadPlan{
		TeamFiles: map[string][]byte{
			"payment_receipt": []byte("receipt"),
			"pastor_letter":   []byte("letter"),
		},
	}

	_, err := orchestrator.UploadAll(context.Background(), "ICCT-007", plan)
	require.ErrorIs(t, err, ErrFileUpload)
	assert.Equal(t, 0, store.CountByPrefix("pending/ICCT-007/"))
}

func TestUploadAllRollsBackOnPlayerFileFailure(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), failFragments: []string{"player_03"}}
	orchestrator := newTestOrchestrator(store)

	plan := UploadPlan{
		TeamFiles: map[string][]byte{"payment_receipt": []byte("receipt")},
		Players: []PlayerUploads{
			{Slot: 1, Files: map[string][]byte{"aadhar_card": []byte("a1")}},
			{Slot: 2, Files: map[string][]byte{"aadhar_card": []byte("a2")}},
			{Slot: 3, Files: map[string][]byte{"aadhar_card": []byte("a3")}},
		},
	}

	_, err := orchestrator.UploadAll(context.Background(), "ICCT-007", plan)
	require.ErrorIs(t, err, ErrFileUpload)
	assert.Equal(t, 0, store.CountByPrefix("pending/ICCT-007/"))
}

func TestUploadAllFallsBackToPerObjectDeletes(t *testing.T) {
	store := &flakyStore{
		MemoryStore:   storage.NewMemoryStore(),
		failFragments: []string{"payment_receipt"},
		prefixErr:     errors.New("prefix delete unsupported"),
	}
	orchestrator := newTestOrchestrator(store)

	plan := UploadPlan{
		TeamFiles: map[string][]byte{
			"payment_receipt": []byte("receipt"),
			"pastor_letter":   []byte("letter"),
		},
	}

	_, err := orchestrator.UploadAll(context.Background(), "ICCT-007", plan)
	require.ErrorIs(t, err, ErrFileUpload)
	assert.Equal(t, []string{"pending/ICCT-007/pastor_letter"}, store.deleted)
	assert.Equal(t, 0, store.CountByPrefix("pending/ICCT-007/"))
}
