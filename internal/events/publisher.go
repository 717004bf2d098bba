package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"healthfinance/internal/events/metrics"
	"healthfinance/pkg/requestcontext"
)

// Producer is the narrow broker surface the publisher needs. *kgo.Client
// satisfies it; tests substitute a fake to observe records and ordering.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Publisher enriches envelopes and hands them to the broker keyed by
// aggregate ID.
//
// Publishing is fire-and-forget: broker errors surface only through the
// completion callback, where they are logged and counted. The caller's
// transaction never rolls back because a publish failed, and there is no
// retry or outbox here — callers that need guaranteed delivery must layer
// that on themselves.
type Publisher struct {
	producer    Producer
	serviceName string
	environment string
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for publish outcome reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// NewPublisher creates a publisher that stamps envelopes with the given
// service name and environment when the caller left them unset.
func NewPublisher(producer Producer, serviceName, environment string, opts ...Option) (*Publisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer is required")
	}
	if environment == "" {
		environment = "dev"
	}
	p := &Publisher{
		producer:    producer,
		serviceName: serviceName,
		environment: environment,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish fills envelope defaults, enriches metadata, and submits the record
// with AggregateID as the partition key. It returns an error only for local
// problems (missing aggregate ID, serialization); broker failures are
// reported through the callback and absorbed.
func (p *Publisher) Publish(ctx context.Context, topic string, e *Envelope) error {
	if e.AggregateID == "" {
		return fmt.Errorf("event %s has no aggregate id", e.EventType)
	}

	e.fillDefaults(time.Now())
	p.enrichMetadata(ctx, e)

	value, err := json.Marshal(e)
	if err != nil {
		if p.metrics != nil {
			p.metrics.IncPublishFailures()
		}
		return fmt.Errorf("marshal event %s: %w", e.EventID, err)
	}

	if p.logger != nil {
		p.logger.InfoContext(ctx, "publishing event",
			"event_type", e.EventType,
			"event_id", e.EventID,
			"topic", topic,
			"aggregate_id", e.AggregateID,
		)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(e.AggregateID),
		Value: value,
	}

	eventID, eventType := e.EventID, e.EventType
	p.producer.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			if p.metrics != nil {
				p.metrics.IncPublishFailures()
			}
			if p.logger != nil {
				p.logger.Error("event publish failed",
					"event_type", eventType,
					"event_id", eventID,
					"error", err,
				)
			}
			return
		}
		if p.metrics != nil {
			p.metrics.IncPublished()
		}
		if p.logger != nil {
			p.logger.Info("event published",
				"event_type", eventType,
				"event_id", eventID,
				"topic", r.Topic,
				"partition", r.Partition,
				"offset", r.Offset,
			)
		}
	})

	return nil
}

// enrichMetadata fills provenance defaults. Correlation, causation, and user
// fields stay caller-owned: they are copied from request context only when
// the caller left them blank, and never invented.
func (p *Publisher) enrichMetadata(ctx context.Context, e *Envelope) {
	if e.Metadata.PublishingService == "" {
		e.Metadata.PublishingService = p.serviceName
	}
	if e.Metadata.Environment == "" {
		e.Metadata.Environment = p.environment
	}
	if e.Metadata.CorrelationID == "" {
		e.Metadata.CorrelationID = requestcontext.CorrelationID(ctx)
	}
	if e.Metadata.UserID == "" {
		e.Metadata.UserID = requestcontext.UserID(ctx)
	}
	if e.Metadata.IPAddress == "" {
		e.Metadata.IPAddress = requestcontext.ClientIP(ctx)
	}
	if e.Metadata.UserAgent == "" {
		e.Metadata.UserAgent = requestcontext.UserAgent(ctx)
	}
}
