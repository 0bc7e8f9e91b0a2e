package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func adminProtected(token string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RequireAdminToken(token, next)
}

func TestRequireAdminToken_ValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/registrations/ICCT-007/confirm", nil)
	req.Header.Set("X-Admin-Token", "hunter2")
	rec := httptest.NewRecorder()

	adminProtected("hunter2").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestRequireAdminToken_MissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/registrations/ICCT-007/confirm", nil)
	rec := httptest.NewRecorder()

	adminProtected("hunter2").ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAdminToken_WrongToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/registrations/ICCT-007/confirm", nil)
	req.Header.Set("X-Admin-Token", "guessed")
	rec := httptest.NewRecorder()

	adminProtected("hunter2").ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAdminToken_Unconfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/registrations/ICCT-007/confirm", nil)
	req.Header.Set("X-Admin-Token", "anything")
	rec := httptest.NewRecorder()

	adminProtected("").ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS([]string{"https://registrations.icctweb.example"}, next)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://registrations.icctweb.example")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://registrations.icctweb.example" {
		t.Fatalf("unexpected Access-Control-Allow-Origin: %q", got)
	}
}

func TestCORS_OptionsPreflight(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS([]string{"*"}, next)

	req := httptest.NewRequest(http.MethodOptions, "/v1/registrations", nil)
	req.Header.Set("Origin", "https://registrations.icctweb.example")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected Access-Control-Allow-Origin: %q", got)
	}
}

func TestCORS_DisallowsUnconfiguredOrigin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS([]string{"https://allowed.example.com"}, next)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no Access-Control-Allow-Origin, got %q", got)
	}
}
