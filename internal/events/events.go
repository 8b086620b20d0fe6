package events

import (
	"context"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
)

// Event доменное событие. Name совпадает с топиком, Key - ID агрегата.
type Event struct {
	Name       string
	Key        string
	Payload    any
	OccurredAt time.Time
}

// Notification уведомление подписчику
type Notification struct {
	Kind         domain.NotificationKind
	SubscriberID string
	Payload      any
	OccurredAt   time.Time
}

// Publisher публикует доменные события
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Notifier доставляет уведомления подписчикам
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// NewSubscriptionEvent событие подписки со снимком ее состояния
func NewSubscriptionEvent(name string, s *domain.Subscription, at time.Time) Event {
	return Event{
		Name:       name,
		Key:        s.ID,
		Payload:    domain.NewSubscriptionEvent(s, at),
		OccurredAt: at,
	}
}

// NewPaymentEvent событие платежа со снимком его состояния
func NewPaymentEvent(name string, p *domain.Payment, at time.Time) Event {
	return NewPaymentEventWithPayload(name, p.ID, domain.NewPaymentEvent(p, at), at)
}

// NewPaymentEventWithPayload событие платежа с уже собранной нагрузкой
func NewPaymentEventWithPayload(name, paymentID string, payload domain.PaymentEvent, at time.Time) Event {
	return Event{
		Name:       name,
		Key:        paymentID,
		Payload:    payload,
		OccurredAt: at,
	}
}

// NewNotification уведомление подписчику
func NewNotification(kind domain.NotificationKind, subscriberID string, payload any, at time.Time) Notification {
	return Notification{
		Kind:         kind,
		SubscriberID: subscriberID,
		Payload:      payload,
		OccurredAt:   at,
	}
}
