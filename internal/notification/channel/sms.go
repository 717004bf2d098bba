package channel

import (
	"context"
	"fmt"
	"log/slog"

	"healthfinance/internal/notification/models"
	"healthfinance/internal/platform/config"
)

// SMSGateway is the external SMS capability. Provider integration (Twilio or
// similar) is out of scope for this service; the gateway interface keeps the
// seam narrow.
type SMSGateway interface {
	SendSMS(ctx context.Context, to, message string) error
}

// SMSSender delivers notifications through an SMS gateway. With SMS disabled
// or no gateway configured it logs the message and reports success.
type SMSSender struct {
	cfg     config.Notification
	gateway SMSGateway
	logger  *slog.Logger
}

// NewSMSSender builds an SMS sender. gateway may be nil when no provider is
// configured.
func NewSMSSender(cfg config.Notification, gateway SMSGateway, logger *slog.Logger) *SMSSender {
	return &SMSSender{cfg: cfg, gateway: gateway, logger: logger}
}

// Send delivers the notification's plain message to the recipient's phone.
func (s *SMSSender) Send(ctx context.Context, n *models.Notification) error {
	if n.RecipientPhone == "" {
		return fmt.Errorf("notification %s has no recipient phone", n.ID)
	}

	if !s.cfg.SMSEnabled || s.gateway == nil {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "sms disabled, skipping delivery",
				"notification_id", n.ID,
				"recipient", n.RecipientPhone,
			)
		}
		return nil
	}

	if err := s.gateway.SendSMS(ctx, n.RecipientPhone, n.Message); err != nil {
		return fmt.Errorf("send sms to %s: %w", n.RecipientPhone, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "sms sent",
			"notification_id", n.ID,
			"recipient", n.RecipientPhone,
		)
	}
	return nil
}

// NoopSender accepts and logs notifications for channels that are not yet
// implemented (push, in-app).
type NoopSender struct {
	channel models.Channel
	logger  *slog.Logger
}

// NewNoopSender builds a logging no-op sender for the given channel.
func NewNoopSender(ch models.Channel, logger *slog.Logger) *NoopSender {
	return &NoopSender{channel: ch, logger: logger}
}

// Send logs and succeeds.
func (s *NoopSender) Send(ctx context.Context, n *models.Notification) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "channel not yet implemented, delivery skipped",
			"channel", s.channel,
			"notification_id", n.ID,
		)
	}
	return nil
}
