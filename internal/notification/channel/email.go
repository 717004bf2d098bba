package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"healthfinance/internal/notification/models"
	"healthfinance/internal/platform/config"
	"healthfinance/pkg/email"
)

// EmailSender delivers notifications over SMTP. When email is disabled by
// configuration it logs and reports success, matching the behavior operators
// expect in non-production environments.
type EmailSender struct {
	cfg    config.Notification
	logger *slog.Logger
	send   func(addr string, from string, to []string, msg []byte) error
}

// NewEmailSender builds an SMTP-backed email sender.
func NewEmailSender(cfg config.Notification, logger *slog.Logger) *EmailSender {
	return &EmailSender{
		cfg:    cfg,
		logger: logger,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// Send delivers the notification to the recipient's email address. HTML
// content is preferred over the plain message when present.
func (s *EmailSender) Send(ctx context.Context, n *models.Notification) error {
	if n.RecipientEmail == "" {
		return fmt.Errorf("notification %s has no recipient email", n.ID)
	}

	if !s.cfg.EmailEnabled {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "email disabled, skipping delivery",
				"notification_id", n.ID,
				"recipient", n.RecipientEmail,
			)
		}
		return nil
	}

	msg := s.buildMessage(n)
	if err := s.send(s.cfg.SMTPAddr, s.cfg.FromEmail, []string{n.RecipientEmail}, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", n.RecipientEmail, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "email sent",
			"notification_id", n.ID,
			"recipient", n.RecipientEmail,
		)
	}
	return nil
}

func (s *EmailSender) buildMessage(n *models.Notification) []byte {
	recipientName := n.RecipientName
	if recipientName == "" {
		recipientName = email.DisplayName(n.RecipientEmail)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", s.cfg.FromName, s.cfg.FromEmail)
	fmt.Fprintf(&b, "To: %s <%s>\r\n", recipientName, n.RecipientEmail)
	fmt.Fprintf(&b, "Subject: %s\r\n", n.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	if n.HTMLContent != "" {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(n.HTMLContent)
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(n.Message)
	}
	return []byte(b.String())
}
