package mailer

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	sonic "github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icctweb/team-registration/internal/platform/resilience"
)

func newTestMailer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{
		BaseURL:     server.URL,
		Token:       "mail-token",
		FromAddress: "registrations@icctweb.example",
		FromName:    "ICCT Registrations",
	}, slog.New(slog.DiscardHandler))
}

func TestClientSend(t *testing.T) {
	var got sendRequest
	var gotAuth string
	client := newTestMailer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(raw, &got))
		w.WriteHeader(http.StatusAccepted)
	})

	err := client.Send(context.Background(), "captain@example.com", "Registration received", "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, "Bearer mail-token", gotAuth)
	assert.Equal(t, "captain@example.com", got.To)
	assert.Equal(t, "registrations@icctweb.example", got.FromAddress)
	assert.Equal(t, "Registration received", got.Subject)
}

func TestClientSendServerErrorIsTransient(t *testing.T) {
	client := newTestMailer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := client.Send(context.Background(), "captain@example.com", "subject", "body")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestClientSendRejectionIsPermanent(t *testing.T) {
	client := newTestMailer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid recipient", http.StatusUnprocessableEntity)
	})

	err := client.Send(context.Background(), "not-an-address", "subject", "body")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestRegistrationReceivedBody(t *testing.T) {
	body := RegistrationReceivedBody("ICCT-007", "Grace Strikers", "John Doe")
	assert.Contains(t, body, "ICCT-007")
	assert.Contains(t, body, "Grace Strikers")
	assert.Contains(t, body, "John Doe")
}
