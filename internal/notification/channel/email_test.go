package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthfinance/internal/notification/models"
	"healthfinance/internal/platform/config"
	id "healthfinance/pkg/domain"
)

func emailConfig(enabled bool) config.Notification {
	return config.Notification{
		EmailEnabled: enabled,
		SMTPAddr:     "smtp.example.com:587",
		FromEmail:    "noreply@example.com",
		FromName:     "Back Office",
	}
}

func emailNotification() *models.Notification {
	return &models.Notification{
		ID:             id.NewNotificationID(),
		RecipientEmail: "alice@example.com",
		Channel:        models.ChannelEmail,
		Subject:        "Invoice ready",
		Message:        "Your invoice is ready",
	}
}

func TestEmailSender_Send(t *testing.T) {
	t.Run("delivers through smtp when enabled", func(t *testing.T) {
		s := NewEmailSender(emailConfig(true), nil)

		var gotAddr, gotFrom string
		var gotTo []string
		s.send = func(addr, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo = addr, from, to
			return nil
		}

		require.NoError(t, s.Send(context.Background(), emailNotification()))
		assert.Equal(t, "smtp.example.com:587", gotAddr)
		assert.Equal(t, "noreply@example.com", gotFrom)
		assert.Equal(t, []string{"alice@example.com"}, gotTo)
	})

	t.Run("disabled sender succeeds without delivering", func(t *testing.T) {
		s := NewEmailSender(emailConfig(false), nil)
		s.send = func(string, string, []string, []byte) error {
			t.Fatal("send must not be called when email is disabled")
			return nil
		}

		assert.NoError(t, s.Send(context.Background(), emailNotification()))
	})

	t.Run("smtp failure is returned", func(t *testing.T) {
		s := NewEmailSender(emailConfig(true), nil)
		s.send = func(string, string, []string, []byte) error {
			return errors.New("connection refused")
		}

		err := s.Send(context.Background(), emailNotification())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "alice@example.com")
	})

	t.Run("missing recipient email fails", func(t *testing.T) {
		s := NewEmailSender(emailConfig(true), nil)
		n := emailNotification()
		n.RecipientEmail = ""

		assert.Error(t, s.Send(context.Background(), n))
	})
}

func TestEmailSender_BuildMessage(t *testing.T) {
	s := NewEmailSender(emailConfig(true), nil)

	t.Run("plain text message", func(t *testing.T) {
		n := emailNotification()
		n.RecipientName = "Alice Smith"
		msg := string(s.buildMessage(n))
		assert.Contains(t, msg, "From: Back Office <noreply@example.com>\r\n")
		assert.Contains(t, msg, "To: Alice Smith <alice@example.com>\r\n")
		assert.Contains(t, msg, "Subject: Invoice ready\r\n")
		assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\nYour invoice is ready")
	})

	t.Run("html content is preferred", func(t *testing.T) {
		n := emailNotification()
		n.HTMLContent = "<p>Your invoice is ready</p>"

		msg := string(s.buildMessage(n))
		assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>Your invoice is ready</p>")
		assert.NotContains(t, msg, "text/plain")
	})

	t.Run("recipient name derived from address when missing", func(t *testing.T) {
		msg := string(s.buildMessage(emailNotification()))
		assert.Contains(t, msg, "To: Alice User <alice@example.com>\r\n")
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	email := NewEmailSender(emailConfig(false), nil)
	r.Register(models.ChannelEmail, email)

	t.Run("registered channel resolves", func(t *testing.T) {
		got, err := r.Lookup(models.ChannelEmail)
		require.NoError(t, err)
		assert.Same(t, email, got.(*EmailSender))
	})

	t.Run("unregistered channel errors", func(t *testing.T) {
		_, err := r.Lookup(models.ChannelSMS)
		assert.ErrorContains(t, err, "no sender registered")
	})
}
