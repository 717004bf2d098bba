package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsPublished prometheus.Counter
	PublishFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfinance_events_published_total",
			Help: "Total number of domain events accepted by the broker",
		}),
		// Publish failures leave no durable record, so this counter is the
		// only signal for a delivery gap.
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfinance_events_publish_failures_total",
			Help: "Total number of domain events that failed to publish",
		}),
	}
}

func (m *Metrics) IncPublished() {
	m.EventsPublished.Inc()
}

func (m *Metrics) IncPublishFailures() {
	m.PublishFailures.Inc()
}
