package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icctweb/team-registration/internal/platform/resilience"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /v1/objects/{path...}", func(w http.ResponseWriter, r *http.Request) {
		content, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.objects[r.PathValue("path")] = content
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("HEAD /v1/objects/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		_, ok := f.objects[r.PathValue("path")]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("DELETE /v1/objects/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		_, ok := f.objects[r.PathValue("path")]
		delete(f.objects, r.PathValue("path"))
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
		}
	})
	return mux
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{BaseURL: server.URL, Token: "secret"}, slog.New(slog.DiscardHandler))
}

func TestClientUpload(t *testing.T) {
	store := newFakeObjectStore()
	client := newTestClient(t, store.handler())

	url, err := client.Upload(context.Background(), "pending/ICCT-007/payment_receipt", []byte("receipt"))
	require.NoError(t, err)
	assert.Contains(t, url, "/v1/objects/pending/ICCT-007/payment_receipt")
	assert.Equal(t, []byte("receipt"), store.objects["pending/ICCT-007/payment_receipt"])
}

func TestClientDeleteAbsentObject(t *testing.T) {
	store := newFakeObjectStore()
	client := newTestClient(t, store.handler())

	err := client.Delete(context.Background(), "pending/ICCT-007/payment_receipt")
	assert.NoError(t, err)
}

func TestClientMoveToleratesFinishedMove(t *testing.T) {
	store := newFakeObjectStore()
	store.objects["confirmed/ICCT-007/ICCT-007_payment_receipt"] = []byte("receipt")

	mux := http.NewServeMux()
	mux.Handle("/", store.handler())
	mux.HandleFunc("POST /v1/objects/move", func(w http.ResponseWriter, _ *http.Request) {
		// The source is gone because an earlier attempt completed.
		w.WriteHeader(http.StatusNotFound)
	})
	client := newTestClient(t, mux)

	url, err := client.Move(context.Background(),
		"pending/ICCT-007/payment_receipt",
		"confirmed/ICCT-007/ICCT-007_payment_receipt")
	require.NoError(t, err)
	assert.Contains(t, url, "confirmed/ICCT-007/ICCT-007_payment_receipt")
}

func TestClientServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.Upload(context.Background(), "pending/ICCT-007/group_photo", []byte("photo"))
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestClientBearerTokenSent(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))

	_, err := client.Upload(context.Background(), "pending/ICCT-007/pastor_letter", []byte("letter"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
}
