// Package sweeper runs the scheduled notification sweep. The dispatcher
// itself performs no timing: notifications scheduled for the future sit
// PENDING until this worker picks them up, and FAILED notifications under the
// retry ceiling are re-attempted here.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"healthfinance/internal/notification/metrics"
	"healthfinance/internal/notification/models"
	id "healthfinance/pkg/domain"
)

// Dispatcher is the slice of the notification service the sweeper drives.
type Dispatcher interface {
	ListDue(ctx context.Context) ([]*models.Notification, error)
	ListFailedRetryable(ctx context.Context, maxRetries int) ([]*models.Notification, error)
	Send(ctx context.Context, n *models.Notification) error
	Resend(ctx context.Context, nid id.NotificationID) (*models.Notification, error)
}

// Sweeper ticks on a fixed interval and fans dispatches out with a bounded
// concurrency limit. Send absorbs delivery failures, so a sweep never aborts
// because one notification could not be delivered.
type Sweeper struct {
	dispatcher  Dispatcher
	interval    time.Duration
	maxRetries  int
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures the Sweeper.
type Option func(*Sweeper)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// WithConcurrency bounds how many notifications one sweep dispatches at once.
func WithConcurrency(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New constructs a sweeper. maxRetries is the ceiling for re-attempting
// FAILED notifications; records at or above it are left for manual resend.
func New(dispatcher Dispatcher, interval time.Duration, maxRetries int, opts ...Option) *Sweeper {
	s := &Sweeper{
		dispatcher:  dispatcher,
		interval:    interval,
		maxRetries:  maxRetries,
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep dispatches everything currently due plus failed-but-retryable
// notifications. Exported so tests and admin endpoints can trigger one pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	due, err := s.dispatcher.ListDue(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "sweep: listing due notifications failed", "error", err)
		}
		due = nil
	}

	failed, err := s.dispatcher.ListFailedRetryable(ctx, s.maxRetries)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "sweep: listing failed notifications failed", "error", err)
		}
		failed = nil
	}

	if len(due) == 0 && len(failed) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, n := range due {
		g.Go(func() error {
			if err := s.dispatcher.Send(ctx, n); err != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "sweep: dispatch failed",
					"notification_id", n.ID, "error", err)
			}
			if s.metrics != nil {
				s.metrics.IncSwept()
			}
			return nil
		})
	}
	for _, n := range failed {
		g.Go(func() error {
			if _, err := s.dispatcher.Resend(ctx, n.ID); err != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "sweep: retry failed",
					"notification_id", n.ID, "error", err)
			}
			if s.metrics != nil {
				s.metrics.IncSwept()
			}
			return nil
		})
	}

	_ = g.Wait()
}
