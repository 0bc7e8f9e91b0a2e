package mailer

import (
	"context"
	"log/slog"
)

// LogOnly records outgoing mail in the log instead of sending it. Used
// when no mail provider is configured (local development).
type LogOnly struct {
	logger *slog.Logger
}

func NewLogOnly(logger *slog.Logger) *LogOnly {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogOnly{logger: logger}
}

func (m *LogOnly) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.logger.InfoContext(ctx, "mail suppressed (log-only mailer)",
		"to", to,
		"subject", subject,
		"body_bytes", len(htmlBody),
	)
	return nil
}
