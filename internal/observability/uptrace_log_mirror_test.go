package observability

import (
	"context"
	"testing"

	otellog "go.opentelemetry.io/otel/log"

	"github.com/icctweb/team-registration/internal/config"
	"github.com/icctweb/team-registration/internal/platform/logging"
)

func TestShouldSkipUptraceLog(t *testing.T) {
	if !shouldSkipUptraceLog("http request", []any{"path", "/healthz"}) {
		t.Fatalf("expected health check log to be skipped")
	}
	if shouldSkipUptraceLog("http request", []any{"path", "/v1/registrations"}) {
		t.Fatalf("did not expect non-health log to be skipped")
	}
	if shouldSkipUptraceLog("mail sent", []any{"path", "/healthz"}) {
		t.Fatalf("did not expect non-request event to be skipped")
	}
}

func TestBuildOTelLogAttributes(t *testing.T) {
	attrs := buildOTelLogAttributes([]any{"team_id", "ICCT-007", "attempt", 2, "payload"})
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "team_id" || attrs[0].Value.AsString() != "ICCT-007" {
		t.Fatalf("unexpected team_id attribute")
	}
	if attrs[1].Key != "attempt" || attrs[1].Value.AsInt64() != 2 {
		t.Fatalf("unexpected attempt attribute")
	}
	if attrs[2].Key != "payload" || attrs[2].Value.Kind() != otellog.KindEmpty {
		t.Fatalf("unexpected payload attribute")
	}
}

func TestInitUptrace_Disabled(t *testing.T) {
	cfg := config.Config{
		UptraceEnabled: false,
		ServiceName:    "team-registration-api",
		ServiceVersion: "dev",
		AppEnv:         config.EnvDev,
	}

	shutdown, err := InitUptrace(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("init uptrace: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown uptrace: %v", err)
	}
}
