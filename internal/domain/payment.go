package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

const (
	// RefundWindow сколько времени после создания платежа разрешен возврат
	RefundWindow = 7 * 24 * time.Hour

	// DefaultFailureReason причина отказа, если шлюз ее не сообщил
	DefaultFailureReason = "Payment processing failed"
)

// Payment представляет собой модель платежа
type Payment struct {
	ID             string          `json:"id"`
	SubscriberID   string          `json:"subscriber_id"`
	SubscriptionID *string         `json:"subscription_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	Status         PaymentStatus   `json:"status"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	RefundedAt     *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PaymentRequest представляет запрос на создание платежа
type PaymentRequest struct {
	SubscriberID   string          `json:"subscriber_id" validate:"required"`
	SubscriptionID *string         `json:"subscription_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description" validate:"max=255"`
}

// RefundRequest запрос на возврат платежа
type RefundRequest struct {
	PercentageToRefund int    `json:"percentageToRefund" validate:"gte=0,lte=100"`
	Reason             string `json:"reason,omitempty" validate:"max=255"`
}

// NewPayment создает платеж в статусе pending
func NewPayment(subscriberID string, subscriptionID *string, amount decimal.Decimal, description string, now time.Time) (*Payment, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if subscriberID == "" {
		return nil, ErrInvalidInput
	}

	return &Payment{
		ID:             uuid.NewString(),
		SubscriberID:   subscriberID,
		SubscriptionID: subscriptionID,
		Amount:         amount.Round(2),
		Description:    description,
		Status:         PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Approve подтверждает платеж и сохраняет ID транзакции шлюза
func (p *Payment) Approve(transactionID string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return NewTransitionError("payment", p.ID, string(p.Status), "approve")
	}
	p.Status = PaymentStatusApproved
	p.TransactionID = transactionID
	p.UpdatedAt = now
	return nil
}

// Fail помечает платеж неуспешным. Пустая причина заменяется на DefaultFailureReason.
func (p *Payment) Fail(reason string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return NewTransitionError("payment", p.ID, string(p.Status), "fail")
	}
	if reason == "" {
		reason = DefaultFailureReason
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.UpdatedAt = now
	return nil
}

// CanBeRefunded true для подтвержденного платежа в пределах окна возврата (граница включительно)
func (p *Payment) CanBeRefunded(now time.Time) bool {
	return p.Status == PaymentStatusApproved && !now.After(p.CreatedAt.Add(RefundWindow))
}

// Refund возвращает подтвержденный платеж. Причина возврата пишется в FailureReason.
func (p *Payment) Refund(reason string, now time.Time) error {
	if p.Status != PaymentStatusApproved {
		return NewTransitionError("payment", p.ID, string(p.Status), "refund")
	}
	if !p.CanBeRefunded(now) {
		return ErrRefundWindowExpired
	}
	p.Status = PaymentStatusRefunded
	p.RefundedAt = &now
	p.FailureReason = reason
	p.UpdatedAt = now
	return nil
}

// RefundAmount сумма возврата для заданного процента
func (p *Payment) RefundAmount(percentage int) decimal.Decimal {
	return p.Amount.Mul(decimal.NewFromInt(int64(percentage))).Div(decimal.NewFromInt(100)).Round(2)
}
