// Package service implements the notification dispatch engine: creating
// records (template-resolved when requested), routing sends by channel, and
// tracking delivery state and retries.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"healthfinance/internal/notification/channel"
	"healthfinance/internal/notification/metrics"
	"healthfinance/internal/notification/models"
	id "healthfinance/pkg/domain"
	dErrors "healthfinance/pkg/domain-errors"
	"healthfinance/pkg/platform/sentinel"
)

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	Update(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, nid id.NotificationID) (*models.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]*models.Notification, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Notification, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Notification, error)
	ListFailedRetryable(ctx context.Context, maxRetries int) ([]*models.Notification, error)
	Delete(ctx context.Context, nid id.NotificationID) error
}

// TemplateStore persists templates and resolves them by name.
type TemplateStore interface {
	GetByName(ctx context.Context, name string) (*models.Template, error)
	Create(ctx context.Context, tpl *models.Template) error
	List(ctx context.Context) ([]*models.Template, error)
}

// Service is the notification dispatcher.
//
// Channel-send failures are caught, recorded on the notification, and counted;
// they never propagate past this component. Recovery is by explicit resend or
// the sweeper, not automatic — the retry ceiling is the sweeper's concern.
type Service struct {
	store     Store
	templates TemplateStore
	registry  *channel.Registry
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs the dispatcher.
func New(store Store, templates TemplateStore, registry *channel.Registry, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("notification store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("channel registry is required")
	}
	s := &Service{
		store:     store,
		templates: templates,
		registry:  registry,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create persists a notification from the request, resolving template content
// when a template name is supplied, and attempts immediate delivery unless
// the notification is scheduled for the future. The stored record is returned
// regardless of send outcome.
func (s *Service) Create(ctx context.Context, req models.Request) (*models.Notification, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	subject, message, htmlContent := req.Subject, req.Message, req.HTMLContent
	if req.TemplateName != "" {
		tpl, err := s.resolveTemplate(ctx, req.TemplateName)
		if err != nil {
			return nil, err
		}
		subject = renderTemplate(tpl.Subject, req.TemplateVariables)
		message = renderTemplate(tpl.Body, req.TemplateVariables)
		htmlContent = ""
		if tpl.HTMLBody != "" {
			htmlContent = renderTemplate(tpl.HTMLBody, req.TemplateVariables)
		}
	}

	now := s.now()
	n := &models.Notification{
		ID:                id.NewNotificationID(),
		RecipientID:       req.RecipientID,
		RecipientEmail:    req.RecipientEmail,
		RecipientPhone:    req.RecipientPhone,
		RecipientName:     req.RecipientName,
		Type:              req.Type,
		Channel:           req.Channel,
		Status:            models.StatusPending,
		Subject:           subject,
		Message:           message,
		HTMLContent:       htmlContent,
		RelatedEntityID:   req.RelatedEntityID,
		RelatedEntityType: req.RelatedEntityType,
		ScheduledAt:       req.ScheduledAt,
		RetryCount:        0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.Create(ctx, n); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store notification")
	}
	if s.metrics != nil {
		s.metrics.IncCreated()
	}

	// Future-scheduled notifications stay PENDING for the sweeper; everything
	// else is attempted right away.
	if n.DueAt(now) {
		if err := s.Send(ctx, n); err != nil {
			return nil, err
		}
	}

	return n, nil
}

// CreateBulk fans one message out to every recipient in the request, creating
// and dispatching an independent notification per recipient. The whole batch
// is validated before any record is stored; after that, one recipient's
// delivery failure never blocks the others (it is absorbed into that record
// like any single send).
func (s *Service) CreateBulk(ctx context.Context, req models.BulkRequest) ([]*models.Notification, error) {
	if err := validateBulkRequest(req); err != nil {
		return nil, err
	}

	out := make([]*models.Notification, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		n, err := s.Create(ctx, models.Request{
			RecipientID:    r.RecipientID,
			RecipientEmail: r.RecipientEmail,
			RecipientPhone: r.RecipientPhone,
			RecipientName:  r.RecipientName,
			Type:           req.Type,
			Channel:        req.Channel,
			Subject:        req.Subject,
			Message:        req.Message,
			HTMLContent:    req.HTMLContent,
			ScheduledAt:    req.ScheduledAt,
		})
		if err != nil {
			// Already-created records stand; each notification is independent.
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Send routes the notification to its channel sender and records the outcome.
// A sender failure marks the record FAILED with the error message and bumps
// RetryCount; it is never returned to the caller. The returned error covers
// persistence problems only.
func (s *Service) Send(ctx context.Context, n *models.Notification) error {
	sender, err := s.registry.Lookup(n.Channel)
	if err == nil {
		err = sender.Send(ctx, n)
	}

	now := s.now()
	if err != nil {
		n.Status = models.StatusFailed
		n.ErrorMessage = err.Error()
		n.RetryCount++
		n.UpdatedAt = now
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "notification send failed",
				"notification_id", n.ID,
				"channel", n.Channel,
				"retry_count", n.RetryCount,
				"error", err,
			)
		}
		if s.metrics != nil {
			s.metrics.IncFailed()
		}
		if err := s.store.Update(ctx, n); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record send failure")
		}
		return nil
	}

	n.Status = models.StatusSent
	n.SentAt = &now
	n.ErrorMessage = ""
	n.UpdatedAt = now
	if s.logger != nil {
		s.logger.InfoContext(ctx, "notification sent",
			"notification_id", n.ID,
			"channel", n.Channel,
		)
	}
	if s.metrics != nil {
		s.metrics.IncSent()
	}
	if err := s.store.Update(ctx, n); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record send success")
	}
	return nil
}

// Resend resets a notification to PENDING and re-attempts delivery. This is
// the only path from FAILED back to PENDING.
func (s *Service) Resend(ctx context.Context, nid id.NotificationID) (*models.Notification, error) {
	n, err := s.get(ctx, nid)
	if err != nil {
		return nil, err
	}

	n.Status = models.StatusPending
	n.UpdatedAt = s.now()
	if err := s.store.Update(ctx, n); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset notification")
	}

	if err := s.Send(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Get returns one notification.
func (s *Service) Get(ctx context.Context, nid id.NotificationID) (*models.Notification, error) {
	return s.get(ctx, nid)
}

// ListByRecipient returns a recipient's notifications, newest first.
func (s *Service) ListByRecipient(ctx context.Context, recipientID string) ([]*models.Notification, error) {
	list, err := s.store.ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return list, nil
}

// ListByStatus returns notifications in the given status.
func (s *Service) ListByStatus(ctx context.Context, status models.Status) ([]*models.Notification, error) {
	list, err := s.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return list, nil
}

// ListDue returns PENDING notifications whose schedule time has passed.
func (s *Service) ListDue(ctx context.Context) ([]*models.Notification, error) {
	list, err := s.store.ListDue(ctx, s.now())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list due notifications")
	}
	return list, nil
}

// ListFailedRetryable returns FAILED notifications under the retry ceiling.
func (s *Service) ListFailedRetryable(ctx context.Context, maxRetries int) ([]*models.Notification, error) {
	list, err := s.store.ListFailedRetryable(ctx, maxRetries)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list failed notifications")
	}
	return list, nil
}

// Delete removes a notification.
func (s *Service) Delete(ctx context.Context, nid id.NotificationID) error {
	if err := s.store.Delete(ctx, nid); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "notification not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete notification")
	}
	return nil
}

func (s *Service) get(ctx context.Context, nid id.NotificationID) (*models.Notification, error) {
	n, err := s.store.Get(ctx, nid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "notification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get notification")
	}
	return n, nil
}

func (s *Service) resolveTemplate(ctx context.Context, name string) (*models.Template, error) {
	if s.templates == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "template not found: "+name)
	}
	tpl, err := s.templates.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "template not found: "+name)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve template")
	}
	return tpl, nil
}

func validateRequest(req models.Request) error {
	switch {
	case req.RecipientID == "":
		return dErrors.New(dErrors.CodeBadRequest, "recipientId is required")
	case req.RecipientEmail == "":
		return dErrors.New(dErrors.CodeBadRequest, "recipientEmail is required")
	case req.Type == "":
		return dErrors.New(dErrors.CodeBadRequest, "notificationType is required")
	case !req.Channel.IsValid():
		return dErrors.New(dErrors.CodeBadRequest, "unknown channel")
	case req.TemplateName == "" && req.Subject == "":
		return dErrors.New(dErrors.CodeBadRequest, "subject is required")
	case req.TemplateName == "" && req.Message == "":
		return dErrors.New(dErrors.CodeBadRequest, "message is required")
	}
	return nil
}

func validateBulkRequest(req models.BulkRequest) error {
	switch {
	case len(req.Recipients) == 0:
		return dErrors.New(dErrors.CodeBadRequest, "recipients are required")
	case req.Type == "":
		return dErrors.New(dErrors.CodeBadRequest, "notificationType is required")
	case !req.Channel.IsValid():
		return dErrors.New(dErrors.CodeBadRequest, "unknown channel")
	case req.Subject == "":
		return dErrors.New(dErrors.CodeBadRequest, "subject is required")
	case req.Message == "":
		return dErrors.New(dErrors.CodeBadRequest, "message is required")
	}
	for i, r := range req.Recipients {
		if r.RecipientID == "" {
			return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("recipient %d: recipientId is required", i))
		}
		if r.RecipientEmail == "" {
			return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("recipient %d: recipientEmail is required", i))
		}
	}
	return nil
}
