package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthfinance/internal/notification/channel"
	"healthfinance/internal/notification/models"
	"healthfinance/internal/notification/store"
	id "healthfinance/pkg/domain"
	dErrors "healthfinance/pkg/domain-errors"
)

// fakeSender records deliveries and fails on demand.
type fakeSender struct {
	mu   sync.Mutex
	sent []id.NotificationID
	err  error
}

func (f *fakeSender) Send(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n.ID)
	return nil
}

func (f *fakeSender) deliveries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type DispatcherSuite struct {
	suite.Suite
	store     *store.Memory
	templates *store.TemplateMemory
	email     *fakeSender
	sms       *fakeSender
	service   *Service
	now       time.Time
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.store = store.NewMemory()
	s.templates = store.NewTemplateMemory()
	s.email = &fakeSender{}
	s.sms = &fakeSender{}
	s.now = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

	registry := channel.NewRegistry()
	registry.Register(models.ChannelEmail, s.email)
	registry.Register(models.ChannelSMS, s.sms)

	var err error
	s.service, err = New(s.store, s.templates, registry,
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
}

func (s *DispatcherSuite) validRequest() models.Request {
	return models.Request{
		RecipientID:    "pat-1",
		RecipientEmail: "alice@example.com",
		Type:           models.TypeAppointmentReminder,
		Channel:        models.ChannelEmail,
		Subject:        "Reminder",
		Message:        "Your appointment is tomorrow",
	}
}

func (s *DispatcherSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.templates, channel.NewRegistry())
		s.Error(err)
	})

	s.Run("nil registry returns error", func() {
		_, err := New(s.store, s.templates, nil)
		s.Error(err)
	})
}

func (s *DispatcherSuite) TestCreate_Validation() {
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*models.Request)
	}{
		{"missing recipient id", func(r *models.Request) { r.RecipientID = "" }},
		{"missing recipient email", func(r *models.Request) { r.RecipientEmail = "" }},
		{"missing type", func(r *models.Request) { r.Type = "" }},
		{"unknown channel", func(r *models.Request) { r.Channel = "CARRIER_PIGEON" }},
		{"missing subject without template", func(r *models.Request) { r.Subject = "" }},
		{"missing message without template", func(r *models.Request) { r.Message = "" }},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := s.validRequest()
			tc.mutate(&req)
			_, err := s.service.Create(ctx, req)
			s.Error(err)
			s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
		})
	}

	s.Run("nothing persisted on validation failure", func() {
		list, err := s.store.ListByStatus(ctx, models.StatusPending)
		s.NoError(err)
		s.Empty(list)
	})
}

func (s *DispatcherSuite) TestCreate_SendsImmediately() {
	ctx := context.Background()

	s.Run("unscheduled notification is sent on create", func() {
		n, err := s.service.Create(ctx, s.validRequest())
		s.Require().NoError(err)

		s.Equal(models.StatusSent, n.Status)
		s.Require().NotNil(n.SentAt)
		s.Equal(s.now, *n.SentAt)
		s.Equal(0, n.RetryCount)
		s.Equal(1, s.email.deliveries())
	})

	s.Run("past-scheduled notification is sent on create", func() {
		req := s.validRequest()
		past := s.now.Add(-time.Hour)
		req.ScheduledAt = &past

		n, err := s.service.Create(ctx, req)
		s.Require().NoError(err)
		s.Equal(models.StatusSent, n.Status)
	})

	s.Run("future-scheduled notification stays pending", func() {
		req := s.validRequest()
		future := s.now.Add(time.Hour)
		req.ScheduledAt = &future
		before := s.email.deliveries()

		n, err := s.service.Create(ctx, req)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, n.Status)
		s.Nil(n.SentAt)
		s.Equal(before, s.email.deliveries())
	})
}

func (s *DispatcherSuite) TestCreate_ChannelFailureIsAbsorbed() {
	ctx := context.Background()
	s.email.err = errors.New("smtp connection refused")

	n, err := s.service.Create(ctx, s.validRequest())
	s.Require().NoError(err, "channel failure must not surface from Create")

	s.Equal(models.StatusFailed, n.Status)
	s.Equal(1, n.RetryCount)
	s.Contains(n.ErrorMessage, "smtp connection refused")
	s.Nil(n.SentAt)

	stored, err := s.service.Get(ctx, n.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, stored.Status)
	s.Equal(1, stored.RetryCount)
}

func (s *DispatcherSuite) TestCreate_WithTemplate() {
	ctx := context.Background()
	s.templates.Put(&models.Template{
		ID:           id.NewTemplateID(),
		TemplateName: "appointment-reminder",
		Type:         models.TypeAppointmentReminder,
		Channel:      models.ChannelEmail,
		Subject:      "Reminder for {{name}}",
		Body:         "Hi {{name}}, see you on {{date}} at {{time}}",
		HTMLBody:     "<p>Hi {{name}}</p>",
		Active:       true,
	})

	s.Run("variables are substituted, unresolved left verbatim", func() {
		req := s.validRequest()
		req.Subject, req.Message = "", ""
		req.TemplateName = "appointment-reminder"
		req.TemplateVariables = map[string]string{"name": "Alice", "date": "2026-05-21"}

		n, err := s.service.Create(ctx, req)
		s.Require().NoError(err)

		s.Equal("Reminder for Alice", n.Subject)
		s.Equal("Hi Alice, see you on 2026-05-21 at {{time}}", n.Message)
		s.Equal("<p>Hi Alice</p>", n.HTMLContent)
	})

	s.Run("missing template is a not found error", func() {
		req := s.validRequest()
		req.TemplateName = "no-such-template"

		_, err := s.service.Create(ctx, req)
		s.Error(err)
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})
}

func (s *DispatcherSuite) TestSend_UnregisteredChannelFails() {
	ctx := context.Background()
	req := s.validRequest()
	req.Channel = models.ChannelPush // valid channel, no sender registered

	n, err := s.service.Create(ctx, req)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, n.Status)
	s.Equal(1, n.RetryCount)
	s.Contains(n.ErrorMessage, "no sender registered")
}

func (s *DispatcherSuite) TestResend() {
	ctx := context.Background()

	s.Run("failed notification can be resent", func() {
		s.email.err = errors.New("transient failure")
		n, err := s.service.Create(ctx, s.validRequest())
		s.Require().NoError(err)
		s.Require().Equal(models.StatusFailed, n.Status)

		s.email.err = nil
		resent, err := s.service.Resend(ctx, n.ID)
		s.Require().NoError(err)

		s.Equal(models.StatusSent, resent.Status)
		s.NotNil(resent.SentAt)
		s.Equal(1, resent.RetryCount, "retry count only grows on failures")
	})

	s.Run("unknown id is a not found error", func() {
		_, err := s.service.Resend(ctx, id.NotificationID("missing"))
		s.Error(err)
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})
}

func (s *DispatcherSuite) TestListFailedRetryable() {
	ctx := context.Background()
	s.email.err = errors.New("down")

	first, err := s.service.Create(ctx, s.validRequest())
	s.Require().NoError(err)

	// Exhaust retries on a second notification.
	second, err := s.service.Create(ctx, s.validRequest())
	s.Require().NoError(err)
	for i := 0; i < 2; i++ {
		_, err = s.service.Resend(ctx, second.ID)
		s.Require().NoError(err)
	}

	retryable, err := s.service.ListFailedRetryable(ctx, 3)
	s.Require().NoError(err)

	ids := make([]id.NotificationID, 0, len(retryable))
	for _, n := range retryable {
		ids = append(ids, n.ID)
	}
	s.Contains(ids, first.ID)
	s.NotContains(ids, second.ID, "notification at the ceiling is excluded")
}

func (s *DispatcherSuite) TestCreateBulk() {
	ctx := context.Background()

	bulk := models.BulkRequest{
		Recipients: []models.BulkRecipient{
			{RecipientID: "pat-1", RecipientEmail: "alice@example.com"},
			{RecipientID: "pat-2", RecipientEmail: "bob@example.com"},
			{RecipientID: "pat-3", RecipientEmail: "carol@example.com"},
		},
		Type:    models.TypeGeneral,
		Channel: models.ChannelEmail,
		Subject: "maintenance window",
		Message: "the portal is down tonight",
	}

	s.Run("creates and sends one record per recipient", func() {
		list, err := s.service.CreateBulk(ctx, bulk)
		s.Require().NoError(err)
		s.Require().Len(list, 3)
		s.Equal(3, s.email.deliveries())

		for i, n := range list {
			s.Equal(bulk.Recipients[i].RecipientID, n.RecipientID)
			s.Equal(models.StatusSent, n.Status)
			s.Equal("maintenance window", n.Subject)
		}
	})

	s.Run("one recipient's failure does not block the rest", func() {
		s.email.err = errors.New("smtp refused")
		defer func() { s.email.err = nil }()

		list, err := s.service.CreateBulk(ctx, bulk)
		s.Require().NoError(err)
		s.Require().Len(list, 3)
		for _, n := range list {
			s.Equal(models.StatusFailed, n.Status)
			s.Equal(1, n.RetryCount)
		}
	})

	s.Run("future-scheduled batch stays pending", func() {
		later := s.now.Add(2 * time.Hour)
		req := bulk
		req.ScheduledAt = &later

		before := s.email.deliveries()
		list, err := s.service.CreateBulk(ctx, req)
		s.Require().NoError(err)
		for _, n := range list {
			s.Equal(models.StatusPending, n.Status)
		}
		s.Equal(before, s.email.deliveries())
	})

	s.Run("validation rejects the whole batch", func() {
		cases := []struct {
			name   string
			mutate func(*models.BulkRequest)
		}{
			{"no recipients", func(r *models.BulkRequest) { r.Recipients = nil }},
			{"missing type", func(r *models.BulkRequest) { r.Type = "" }},
			{"unknown channel", func(r *models.BulkRequest) { r.Channel = "CARRIER_PIGEON" }},
			{"missing subject", func(r *models.BulkRequest) { r.Subject = "" }},
			{"missing message", func(r *models.BulkRequest) { r.Message = "" }},
			{"recipient without email", func(r *models.BulkRequest) {
				r.Recipients = []models.BulkRecipient{{RecipientID: "pat-1"}}
			}},
		}
		for _, tc := range cases {
			s.Run(tc.name, func() {
				req := bulk
				tc.mutate(&req)
				_, err := s.service.CreateBulk(ctx, req)
				s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
			})
		}
	})
}

func (s *DispatcherSuite) TestTemplateManagement() {
	ctx := context.Background()

	req := models.TemplateRequest{
		TemplateName: "appointment-reminder",
		Type:         models.TypeAppointmentReminder,
		Channel:      models.ChannelEmail,
		Subject:      "Reminder for {{name}}",
		Body:         "See you on {{date}}",
	}

	s.Run("create defaults to active and is resolvable", func() {
		tpl, err := s.service.CreateTemplate(ctx, req)
		s.Require().NoError(err)
		s.True(tpl.Active)
		s.Equal(s.now, tpl.CreatedAt)

		got, err := s.service.GetTemplate(ctx, "appointment-reminder")
		s.Require().NoError(err)
		s.Equal(tpl.ID, got.ID)

		// The resolution path used by Create sees it too.
		n, err := s.service.Create(ctx, models.Request{
			RecipientID:       "pat-1",
			RecipientEmail:    "alice@example.com",
			Type:              models.TypeAppointmentReminder,
			Channel:           models.ChannelEmail,
			TemplateName:      "appointment-reminder",
			TemplateVariables: map[string]string{"name": "Alice", "date": "2026-06-01"},
		})
		s.Require().NoError(err)
		s.Equal("Reminder for Alice", n.Subject)
		s.Equal("See you on 2026-06-01", n.Message)
	})

	s.Run("duplicate name is a conflict", func() {
		_, err := s.service.CreateTemplate(ctx, req)
		s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
	})

	s.Run("validation", func() {
		cases := []struct {
			name   string
			mutate func(*models.TemplateRequest)
		}{
			{"missing name", func(r *models.TemplateRequest) { r.TemplateName = "" }},
			{"missing type", func(r *models.TemplateRequest) { r.Type = "" }},
			{"unknown channel", func(r *models.TemplateRequest) { r.Channel = "SMOKE_SIGNAL" }},
			{"missing subject", func(r *models.TemplateRequest) { r.Subject = "" }},
			{"missing body", func(r *models.TemplateRequest) { r.Body = "" }},
		}
		for _, tc := range cases {
			s.Run(tc.name, func() {
				bad := req
				tc.mutate(&bad)
				_, err := s.service.CreateTemplate(ctx, bad)
				s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
			})
		}
	})

	s.Run("inactive template is listed but not resolvable", func() {
		inactive := false
		_, err := s.service.CreateTemplate(ctx, models.TemplateRequest{
			TemplateName: "retired",
			Type:         models.TypeGeneral,
			Channel:      models.ChannelEmail,
			Subject:      "s",
			Body:         "b",
			Active:       &inactive,
		})
		s.Require().NoError(err)

		_, err = s.service.GetTemplate(ctx, "retired")
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))

		list, err := s.service.ListTemplates(ctx)
		s.Require().NoError(err)
		names := make([]string, 0, len(list))
		for _, tpl := range list {
			names = append(names, tpl.TemplateName)
		}
		s.Contains(names, "retired")
	})
}

func (s *DispatcherSuite) TestDelete() {
	ctx := context.Background()

	n, err := s.service.Create(ctx, s.validRequest())
	s.Require().NoError(err)

	s.NoError(s.service.Delete(ctx, n.ID))

	_, err = s.service.Get(ctx, n.ID)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))

	err = s.service.Delete(ctx, n.ID)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}
