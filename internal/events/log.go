package events

import (
	"context"

	"github.com/Dhoini/billing-service/pkg/logger"
)

// LogPublisher пишет события в лог. Используется, когда Kafka отключена.
type LogPublisher struct {
	log *logger.Logger
}

// NewLogPublisher создает LogPublisher
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish реализует Publisher
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.log.Infow("Domain event", "event", event.Name, "key", event.Key, "occurredAt", event.OccurredAt)
	return nil
}

// LogNotifier пишет уведомления в лог
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier создает LogNotifier
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify реализует Notifier
func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	n.log.Infow("Notification sent", "kind", notification.Kind, "subscriberID", notification.SubscriberID)
	return nil
}
