package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Имена доменных событий (используются и как топики Kafka)
const (
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionRenewed   = "subscription.renewed"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionPending   = "subscription.pending"
	EventSubscriptionExpired   = "subscription.expired"

	EventPaymentCreated  = "payment.created"
	EventPaymentApproved = "payment.approved"
	EventPaymentFailed   = "payment.failed"
	EventPaymentRefunded = "payment.refunded"
)

// AllEventNames все события, которые публикует сервис
var AllEventNames = []string{
	EventSubscriptionCreated,
	EventSubscriptionRenewed,
	EventSubscriptionCancelled,
	EventSubscriptionPending,
	EventSubscriptionExpired,
	EventPaymentCreated,
	EventPaymentApproved,
	EventPaymentFailed,
	EventPaymentRefunded,
}

// NotificationKind тип уведомления подписчику
type NotificationKind string

const (
	NotificationPaymentSuccess        NotificationKind = "payment_success"
	NotificationPaymentFailure        NotificationKind = "payment_failure"
	NotificationPaymentRefunded       NotificationKind = "payment_refunded"
	NotificationSubscriptionCreated   NotificationKind = "subscription_created"
	NotificationSubscriptionRenewed   NotificationKind = "subscription_renewed"
	NotificationSubscriptionCancelled NotificationKind = "subscription_cancelled"
	NotificationSubscriptionExpired   NotificationKind = "subscription_expired"
)

// SubscriptionEvent полезная нагрузка событий подписки
type SubscriptionEvent struct {
	SubscriptionID        string             `json:"subscription_id"`
	SubscriberID          string             `json:"subscriber_id"`
	PlanID                string             `json:"plan_id"`
	Status                SubscriptionStatus `json:"status"`
	StartDate             time.Time          `json:"start_date"`
	EndDate               time.Time          `json:"end_date"`
	FailedPaymentAttempts int                `json:"failed_payment_attempts"`
	OccurredAt            time.Time          `json:"occurred_at"`
}

// NewSubscriptionEvent снимок подписки для события
func NewSubscriptionEvent(s *Subscription, at time.Time) SubscriptionEvent {
	return SubscriptionEvent{
		SubscriptionID:        s.ID,
		SubscriberID:          s.SubscriberID,
		PlanID:                s.PlanID,
		Status:                s.Status,
		StartDate:             s.StartDate,
		EndDate:               s.EndDate,
		FailedPaymentAttempts: s.FailedPaymentAttempts,
		OccurredAt:            at,
	}
}

// PaymentEvent полезная нагрузка событий платежа
type PaymentEvent struct {
	PaymentID      string           `json:"payment_id"`
	SubscriberID   string           `json:"subscriber_id"`
	SubscriptionID *string          `json:"subscription_id,omitempty"`
	Amount         decimal.Decimal  `json:"amount"`
	Status         PaymentStatus    `json:"status"`
	TransactionID  string           `json:"transaction_id,omitempty"`
	FailureReason  string           `json:"failure_reason,omitempty"`
	RefundAmount   *decimal.Decimal `json:"refund_amount,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// NewPaymentEvent снимок платежа для события
func NewPaymentEvent(p *Payment, at time.Time) PaymentEvent {
	return PaymentEvent{
		PaymentID:      p.ID,
		SubscriberID:   p.SubscriberID,
		SubscriptionID: p.SubscriptionID,
		Amount:         p.Amount,
		Status:         p.Status,
		TransactionID:  p.TransactionID,
		FailureReason:  p.FailureReason,
		OccurredAt:     at,
	}
}
