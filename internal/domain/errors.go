package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound запись не найдена (подписчик, план, подписка, платеж)
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrInvalidTransition переход статуса недопустим из текущего состояния
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPlanInactive план отключен и не принимает новых подписок
	ErrPlanInactive = errors.New("plan is inactive")

	// ErrDuplicateActiveSubscription у подписчика уже есть активная или ожидающая подписка
	ErrDuplicateActiveSubscription = errors.New("subscriber already has an active or pending subscription")

	// ErrRefundWindowExpired окно возврата истекло
	ErrRefundWindowExpired = errors.New("refund window expired")

	// ErrInvalidAmount отрицательная сумма платежа
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrGateway ошибка платежного шлюза
	ErrGateway = errors.New("payment gateway error")

	// ErrPaymentDeclined платеж продления был отклонен
	ErrPaymentDeclined = errors.New("payment declined")
)

// NotFoundError ошибка отсутствия сущности с указанием типа и ID
type NotFoundError struct {
	Entity string
	ID     string
}

// Error реализует интерфейс error
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Is позволяет сравнивать с ErrNotFound через errors.Is
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError создает новую ошибку отсутствия сущности
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// TransitionError описывает запрещенный переход статуса
type TransitionError struct {
	Entity string
	ID     string
	From   string
	Action string
}

// Error реализует интерфейс error
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %q", e.Action, e.Entity, e.ID, e.From)
}

// Is позволяет сравнивать с ErrInvalidTransition через errors.Is
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// NewTransitionError создает ошибку недопустимого перехода
func NewTransitionError(entity, id, from, action string) *TransitionError {
	return &TransitionError{Entity: entity, ID: id, From: from, Action: action}
}

// GatewayError ошибка, полученная от платежного шлюза
type GatewayError struct {
	Provider    string
	Message     string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *GatewayError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("gateway %s: %s: %v", e.Provider, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("gateway %s: %s", e.Provider, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *GatewayError) Unwrap() error {
	return e.OriginalErr
}

// Is позволяет сравнивать с ErrGateway через errors.Is
func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

// NewGatewayError создает новую ошибку шлюза
func NewGatewayError(provider, message string, err error) *GatewayError {
	return &GatewayError{Provider: provider, Message: message, OriginalErr: err}
}

// PaymentDeclinedError возвращается из продления, когда платеж завершился статусом failed
type PaymentDeclinedError struct {
	SubscriptionID string
	PaymentID      string
	Reason         string
}

// Error реализует интерфейс error
func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment %s for subscription %s declined: %s", e.PaymentID, e.SubscriptionID, e.Reason)
}

// Is позволяет сравнивать с ErrPaymentDeclined через errors.Is
func (e *PaymentDeclinedError) Is(target error) bool {
	return target == ErrPaymentDeclined
}
