// Package mailer sends outbound email over SMTP.
// When no SMTP host is configured New returns nil, and a nil client reports
// ErrNotConfigured from Send. A send can fail, it must never pretend to
// succeed: callers that mark or acknowledge deliveries rely on that.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/albapepper/birthday-notifier/internal/config"
)

// ErrNotConfigured is returned by Send when no SMTP transport is configured.
var ErrNotConfigured = errors.New("smtp transport not configured")

// SMTP dispatches messages through a single configured transport. Each send
// is bounded by the client timeout plus the caller's context, so one stuck
// delivery cannot block the scheduler indefinitely.
type SMTP struct {
	client *mail.Client
	from   string
	logger *slog.Logger
}

// New builds an SMTP mailer from configuration.
// Returns nil if no SMTP host is configured (outbound mail disabled).
func New(cfg *config.Config, logger *slog.Logger) (*SMTP, error) {
	if cfg.SMTPHost == "" {
		return nil, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(cfg.SMTPTimeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPEmail != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPEmail),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &SMTP{
		client: client,
		from:   cfg.SMTPFrom,
		logger: logger,
	}, nil
}

// Send dispatches one plain-text message synchronously. A failure means the
// message was not delivered; callers must not mark the record as sent.
func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	if s == nil {
		return ErrNotConfigured
	}

	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("set from %q: %w", s.from, err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("set recipient %q: %w", to, err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}

	s.logger.Info("Email sent", "to", to, "subject", subject)
	return nil
}
