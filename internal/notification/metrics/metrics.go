package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	NotificationsCreated prometheus.Counter
	NotificationsSent    prometheus.Counter
	NotificationsFailed  prometheus.Counter
	SweepDispatches      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		NotificationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfinance_notifications_created_total",
			Help: "Total number of notifications created",
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfinance_notifications_sent_total",
			Help: "Total number of notifications delivered successfully",
		}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfinance_notifications_failed_total",
			Help: "Total number of failed delivery attempts",
		}),
		SweepDispatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfinance_notification_sweep_dispatches_total",
			Help: "Total number of notifications dispatched by the scheduled sweep",
		}),
	}
}

func (m *Metrics) IncCreated() { m.NotificationsCreated.Inc() }
func (m *Metrics) IncSent()    { m.NotificationsSent.Inc() }
func (m *Metrics) IncFailed()  { m.NotificationsFailed.Inc() }
func (m *Metrics) IncSwept()   { m.SweepDispatches.Inc() }
