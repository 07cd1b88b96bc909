package notifications

import (
	"context"
	"log/slog"

	"xnatflow/internal/config"
	"xnatflow/internal/logging"
)

// Service is the notification surface used by the lifecycle scope and CLI.
type Service interface {
	// Send emails subject and body to recipients. Empty recipients is a no-op.
	Send(ctx context.Context, recipients []string, subject, body string) error
	// Deliver sends a classified message through every configured channel.
	Deliver(ctx context.Context, msg Message) error
	// TestNotification sends a fixed test message.
	TestNotification(ctx context.Context, recipients []string) error
}

// NewService builds the composite service from configuration. Email is
// skipped when disabled; the ntfy mirror only exists when a topic is set.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	svc := &service{logger: logging.NewComponentLogger(logger, "notifications")}
	if cfg == nil {
		return svc
	}
	if cfg.Notifications.Email {
		svc.mailer = NewMailer(cfg.Mail.Host, cfg.Mail.From).WithTimeout(cfg.NtfyTimeout())
	}
	svc.mirror = newNtfyMirror(cfg.Notifications.NtfyTopic, cfg.NtfyTimeout())
	return svc
}

type service struct {
	mailer *Mailer
	mirror *ntfyMirror
	logger *slog.Logger
}

func (s *service) Send(ctx context.Context, recipients []string, subject, body string) error {
	return s.Deliver(ctx, Message{Recipients: recipients, Subject: subject, Body: body, Kind: KindSuccess})
}

func (s *service) Deliver(ctx context.Context, msg Message) error {
	recipients := cleanRecipients(msg.Recipients)
	if len(recipients) == 0 {
		s.logger.Debug("no notification recipients; skipping", logging.String("subject", msg.Subject))
		return nil
	}

	if s.mirror != nil {
		if err := s.mirror.publish(ctx, msg); err != nil {
			logging.WarnWithContext(s.logger, "ntfy mirror failed", "notification_mirror_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "push notification not delivered; email unaffected"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"))
		}
	}

	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.Send(ctx, recipients, msg.Subject, msg.Body); err != nil {
		return err
	}
	s.logger.Info("notification sent",
		logging.String(logging.FieldEventType, "notification_sent"),
		logging.String("subject", msg.Subject),
		logging.Int("recipients", len(recipients)))
	return nil
}

func (s *service) TestNotification(ctx context.Context, recipients []string) error {
	return s.Deliver(ctx, Message{
		Recipients: recipients,
		Subject:    "xnatflow test notification",
		Body:       "This is a test message from xnatflow.\n\nIf you received it, the mail relay is configured correctly.",
		Kind:       KindTest,
	})
}
