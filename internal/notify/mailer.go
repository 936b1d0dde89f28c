package notify

import (
	"context"
	"log/slog"
	"strings"
)

// Mailer delivers a composed email. Delivery failures are reported to the
// caller; they are never allowed to roll back the transition that triggered
// the notification.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// LogMailer writes outgoing mail to the log instead of delivering it. Used in
// development (SKIP_EMAIL_SEND) and in tests.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, email Email) error {
	names := make([]string, len(email.Attachments))
	for i, a := range email.Attachments {
		names[i] = a.Filename
	}
	m.logger.Info("skipping email send",
		"subject", email.Subject,
		"to", strings.Join(email.To, ", "),
		"cc", strings.Join(email.CC, ", "),
		"attachments", strings.Join(names, ", "),
		"body", email.Body,
	)
	return nil
}
