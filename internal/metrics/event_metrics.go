package metrics

import (
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventMetrics метрики доставки доменных событий и уведомлений
type EventMetrics interface {
	IncEventPublished(name string)
	IncEventPublishFailed(name string)
	IncNotificationSent(kind string)
	IncNotificationFailed(kind string)
	IncNotificationDropped(kind string)
}

type eventMetrics struct {
	log           *logger.Logger
	events        *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewEventMetrics создает метрики событий
func NewEventMetrics(registry prometheus.Registerer, log *logger.Logger) EventMetrics {
	reg := promauto.With(registry)
	return &eventMetrics{
		log: log,
		events: reg.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Domain events by name and delivery result",
		}, []string{"event", "result"}),
		notifications: reg.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Subscriber notifications by kind and delivery result",
		}, []string{"kind", "result"}),
	}
}

func (m *eventMetrics) IncEventPublished(name string) {
	m.events.WithLabelValues(name, "published").Inc()
}

func (m *eventMetrics) IncEventPublishFailed(name string) {
	m.events.WithLabelValues(name, "failed").Inc()
}

func (m *eventMetrics) IncNotificationSent(kind string) {
	m.notifications.WithLabelValues(kind, "sent").Inc()
}

func (m *eventMetrics) IncNotificationFailed(kind string) {
	m.notifications.WithLabelValues(kind, "failed").Inc()
}

func (m *eventMetrics) IncNotificationDropped(kind string) {
	m.notifications.WithLabelValues(kind, "dropped").Inc()
}
