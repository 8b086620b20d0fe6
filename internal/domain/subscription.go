package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// MaxFailedPaymentAttempts после стольких неудачных продлений подписка истекает
const MaxFailedPaymentAttempts = 3

// IsTerminal сообщает, что из статуса нет переходов
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCanceled || s == SubscriptionStatusExpired
}

// IsOpen активная или ожидающая оплаты подписка (не более одной на подписчика)
func (s SubscriptionStatus) IsOpen() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusPending
}

// Subscription представляет собой модель подписки.
// Поля меняются только через методы переходов ниже.
type Subscription struct {
	ID                    string             `json:"id"`
	SubscriberID          string             `json:"subscriber_id"`
	PlanID                string             `json:"plan_id"`
	Status                SubscriptionStatus `json:"status"`
	StartDate             time.Time          `json:"start_date"`
	EndDate               time.Time          `json:"end_date"`
	FailedPaymentAttempts int                `json:"failed_payment_attempts"`
	CanceledAt            *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// SubscriptionRequest представляет запрос на создание подписки
type SubscriptionRequest struct {
	SubscriberID string `json:"subscriber_id" validate:"required"`
	PlanID       string `json:"plan_id" validate:"required"`
}

// NewSubscription создает активную подписку на полный период плана, начиная с now
func NewSubscription(subscriberID string, plan Plan, now time.Time) (*Subscription, error) {
	if subscriberID == "" || plan.ID == "" {
		return nil, ErrInvalidInput
	}
	if plan.DurationDays() <= 0 {
		return nil, ErrInvalidInput
	}

	return &Subscription{
		ID:           uuid.NewString(),
		SubscriberID: subscriberID,
		PlanID:       plan.ID,
		Status:       SubscriptionStatusActive,
		StartDate:    now,
		EndDate:      now.AddDate(0, 0, plan.DurationDays()),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Cancel отменяет активную или ожидающую подписку
func (s *Subscription) Cancel(now time.Time) error {
	if !s.Status.IsOpen() {
		return NewTransitionError("subscription", s.ID, string(s.Status), "cancel")
	}
	s.Status = SubscriptionStatusCanceled
	s.CanceledAt = &now
	s.UpdatedAt = now
	return nil
}

// MarkAsActive возвращает подписку в active с новой датой окончания и сбрасывает счетчик неудач
func (s *Subscription) MarkAsActive(endDate, now time.Time) error {
	if !s.Status.IsOpen() {
		return NewTransitionError("subscription", s.ID, string(s.Status), "activate")
	}
	if endDate.Before(s.StartDate) {
		return ErrInvalidInput
	}
	s.Status = SubscriptionStatusActive
	s.EndDate = endDate
	s.FailedPaymentAttempts = 0
	s.UpdatedAt = now
	return nil
}

// MarkAsPending фиксирует очередную неудачу продления.
// На MaxFailedPaymentAttempts-й неудаче подписка сразу становится expired;
// возвращаемое значение сообщает, произошла ли эскалация.
func (s *Subscription) MarkAsPending(now time.Time) (bool, error) {
	if !s.Status.IsOpen() {
		return false, NewTransitionError("subscription", s.ID, string(s.Status), "mark as pending")
	}
	s.FailedPaymentAttempts++
	s.UpdatedAt = now
	if s.FailedPaymentAttempts >= MaxFailedPaymentAttempts {
		s.Status = SubscriptionStatusExpired
		return true, nil
	}
	s.Status = SubscriptionStatusPending
	return false, nil
}

// MarkAsExpired переводит подписку в терминальный статус expired
func (s *Subscription) MarkAsExpired(now time.Time) error {
	if !s.Status.IsOpen() {
		return NewTransitionError("subscription", s.ID, string(s.Status), "expire")
	}
	s.Status = SubscriptionStatusExpired
	s.UpdatedAt = now
	return nil
}

// ShouldRenew true, если подписка активна и ее период закончился
func (s *Subscription) ShouldRenew(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && !s.EndDate.After(now)
}

// IsDue true для активных и ожидающих подписок с истекшим периодом.
// Именно это множество обходит задача продления.
func (s *Subscription) IsDue(now time.Time) bool {
	return s.Status.IsOpen() && !s.EndDate.After(now)
}

// NextEndDate считает новую дату окончания от предыдущей, а не от текущего времени
func (s *Subscription) NextEndDate(plan Plan) time.Time {
	return s.EndDate.AddDate(0, 0, plan.DurationDays())
}
