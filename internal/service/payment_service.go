package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/internal/events"
	"github.com/Dhoini/billing-service/internal/gateway"
	"github.com/Dhoini/billing-service/internal/metrics"
	"github.com/Dhoini/billing-service/internal/repository"
	"github.com/Dhoini/billing-service/pkg/logger"
)

// PaymentService интерфейс сервиса для работы с платежами
type PaymentService interface {
	Create(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error)
	CreateForSubscription(ctx context.Context, sub *domain.Subscription, plan *domain.Plan) (*domain.Payment, error)
	Process(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	MarkAsApproved(ctx context.Context, id, transactionID string) (*domain.Payment, error)
	MarkAsFailed(ctx context.Context, id, reason string) (*domain.Payment, error)
	Refund(ctx context.Context, id string, req domain.RefundRequest) (*domain.Payment, error)

	FindByID(ctx context.Context, id string) (*domain.Payment, error)
	FindAll(ctx context.Context) ([]*domain.Payment, error)
	FindByUser(ctx context.Context, subscriberID string) ([]*domain.Payment, error)
	FindBySubscription(ctx context.Context, subscriptionID string) ([]*domain.Payment, error)
}

type paymentService struct {
	paymentRepo      repository.PaymentRepository
	subscriptionRepo repository.SubscriptionRepository
	subscriberRepo   repository.SubscriberRepository
	gateway          gateway.Gateway
	dispatcher       *events.Dispatcher
	metrics          metrics.PaymentMetrics
	log              *logger.Logger
	opts             options
}

// NewPaymentService создает новый сервис для работы с платежами
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	subscriptionRepo repository.SubscriptionRepository,
	subscriberRepo repository.SubscriberRepository,
	gw gateway.Gateway,
	dispatcher *events.Dispatcher,
	m metrics.PaymentMetrics,
	log *logger.Logger,
	opts ...Option,
) PaymentService {
	return &paymentService{
		paymentRepo:      paymentRepo,
		subscriptionRepo: subscriptionRepo,
		subscriberRepo:   subscriberRepo,
		gateway:          gw,
		dispatcher:       dispatcher,
		metrics:          m,
		log:              log,
		opts:             newOptions(opts),
	}
}

// Create создает новый платеж в статусе pending
func (s *paymentService) Create(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	s.log.Debug("Creating payment for subscriber: %s, amount: %s", req.SubscriberID, req.Amount)

	if req.Amount.IsNegative() {
		s.log.Warn("Rejected payment with negative amount %s for subscriber %s", req.Amount, req.SubscriberID)
		return nil, domain.ErrInvalidAmount
	}

	if _, err := s.subscriberRepo.GetByID(ctx, req.SubscriberID); err != nil {
		s.logLookupError("subscriber", req.SubscriberID, err)
		return nil, err
	}

	// Платеж можно привязать только к подписке того же подписчика
	if req.SubscriptionID != nil {
		sub, err := s.subscriptionRepo.GetByID(ctx, *req.SubscriptionID)
		if err != nil {
			s.logLookupError("subscription", *req.SubscriptionID, err)
			return nil, err
		}
		if sub.SubscriberID != req.SubscriberID {
			s.log.Warn("Subscription %s does not belong to subscriber %s", sub.ID, req.SubscriberID)
			return nil, fmt.Errorf("%w: subscription %s does not belong to subscriber %s", domain.ErrInvalidInput, sub.ID, req.SubscriberID)
		}
	}

	return s.create(ctx, req)
}

// CreateForSubscription создает платеж на стоимость плана подписки
func (s *paymentService) CreateForSubscription(ctx context.Context, sub *domain.Subscription, plan *domain.Plan) (*domain.Payment, error) {
	s.log.Debug("Creating payment for subscription: %s, plan: %s", sub.ID, plan.ID)

	subscriptionID := sub.ID
	return s.create(ctx, domain.PaymentRequest{
		SubscriberID:   sub.SubscriberID,
		SubscriptionID: &subscriptionID,
		Amount:         plan.Price,
		Description:    fmt.Sprintf("Subscription payment for plan %s", plan.Name),
	})
}

func (s *paymentService) create(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	now := s.opts.now()
	payment, err := domain.NewPayment(req.SubscriberID, req.SubscriptionID, req.Amount, req.Description, now)
	if err != nil {
		s.log.Warn("Invalid payment request for subscriber %s: %v", req.SubscriberID, err)
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		s.log.Error("Error saving payment: %v", err)
		return nil, err
	}

	s.metrics.IncPaymentCreated()
	s.dispatcher.Flush(ctx, events.NewOutbox().
		AddEvent(events.NewPaymentEvent(domain.EventPaymentCreated, payment, now)))

	s.log.Info("Payment created: %s for subscriber: %s", payment.ID, payment.SubscriberID)
	return payment, nil
}

// Process выполняет одну попытку списания через шлюз и фиксирует результат.
// Ошибки шлюза, паника и таймаут переводят платеж в failed и не возвращаются как ошибка.
func (s *paymentService) Process(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	s.log.Debug("Processing payment: %s", payment.ID)

	if payment.Status != domain.PaymentStatusPending {
		s.log.Warn("Cannot process payment %s in status %s", payment.ID, payment.Status)
		return nil, domain.NewTransitionError("payment", payment.ID, string(payment.Status), "process")
	}

	start := s.opts.now()
	txID, err := gateway.SafeSettle(ctx, s.gateway, payment, s.opts.gatewayTimeout)
	elapsed := s.opts.now().Sub(start).Seconds()

	if err != nil {
		s.metrics.ObserveGatewayDuration(elapsed, "failed")
		s.log.Warnw("Payment settlement failed", "paymentID", payment.ID, "error", err)
		return s.MarkAsFailed(ctx, payment.ID, err.Error())
	}

	s.metrics.ObserveGatewayDuration(elapsed, "approved")
	return s.MarkAsApproved(ctx, payment.ID, txID)
}

// MarkAsApproved подтверждает платеж в статусе pending
func (s *paymentService) MarkAsApproved(ctx context.Context, id, transactionID string) (*domain.Payment, error) {
	s.log.Debug("Approving payment: %s, transaction: %s", id, transactionID)

	payment, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	if err := payment.Approve(transactionID, now); err != nil {
		s.log.Warn("Cannot approve payment %s: %v", id, err)
		return nil, err
	}

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		s.log.Error("Error updating payment %s: %v", id, err)
		return nil, err
	}

	s.metrics.IncPaymentApproved()
	s.metrics.ObservePaymentAmount(payment.Amount.InexactFloat64(), string(payment.Status))

	event := domain.NewPaymentEvent(payment, now)
	s.dispatcher.Flush(ctx, events.NewOutbox().
		AddEvent(events.NewPaymentEventWithPayload(domain.EventPaymentApproved, payment.ID, event, now)).
		AddNotification(events.NewNotification(domain.NotificationPaymentSuccess, payment.SubscriberID, event, now)))

	s.log.Info("Payment approved: %s", id)
	return payment, nil
}

// MarkAsFailed помечает платеж в статусе pending как неуспешный
func (s *paymentService) MarkAsFailed(ctx context.Context, id, reason string) (*domain.Payment, error) {
	s.log.Debug("Failing payment: %s, reason: %s", id, reason)

	payment, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	if err := payment.Fail(reason, now); err != nil {
		s.log.Warn("Cannot fail payment %s: %v", id, err)
		return nil, err
	}

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		s.log.Error("Error updating payment %s: %v", id, err)
		return nil, err
	}

	s.metrics.IncPaymentFailed()
	s.metrics.ObservePaymentAmount(payment.Amount.InexactFloat64(), string(payment.Status))

	event := domain.NewPaymentEvent(payment, now)
	s.dispatcher.Flush(ctx, events.NewOutbox().
		AddEvent(events.NewPaymentEventWithPayload(domain.EventPaymentFailed, payment.ID, event, now)).
		AddNotification(events.NewNotification(domain.NotificationPaymentFailure, payment.SubscriberID, event, now)))

	s.log.Info("Payment marked as failed: %s (%s)", id, payment.FailureReason)
	return payment, nil
}

// Refund возвращает подтвержденный платеж в пределах окна возврата
func (s *paymentService) Refund(ctx context.Context, id string, req domain.RefundRequest) (*domain.Payment, error) {
	s.log.Debug("Refunding payment: %s, percentage: %d", id, req.PercentageToRefund)

	if req.PercentageToRefund < 0 || req.PercentageToRefund > 100 {
		s.log.Warn("Invalid refund percentage %d for payment %s", req.PercentageToRefund, id)
		return nil, fmt.Errorf("%w: percentage to refund must be between 0 and 100", domain.ErrInvalidInput)
	}

	payment, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	if err := payment.Refund(req.Reason, now); err != nil {
		s.log.Warn("Cannot refund payment %s: %v", id, err)
		return nil, err
	}

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		s.log.Error("Error updating payment %s: %v", id, err)
		return nil, err
	}

	s.metrics.IncPaymentRefunded()

	refundAmount := payment.RefundAmount(req.PercentageToRefund)
	event := domain.NewPaymentEvent(payment, now)
	event.RefundAmount = &refundAmount
	s.dispatcher.Flush(ctx, events.NewOutbox().
		AddEvent(events.NewPaymentEventWithPayload(domain.EventPaymentRefunded, payment.ID, event, now)).
		AddNotification(events.NewNotification(domain.NotificationPaymentRefunded, payment.SubscriberID, event, now)))

	s.log.Info("Payment refunded: %s, amount: %s", id, refundAmount)
	return payment, nil
}

// FindByID возвращает платеж по ID
func (s *paymentService) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		s.logLookupError("payment", id, err)
		return nil, err
	}
	return payment, nil
}

// FindAll возвращает все платежи
func (s *paymentService) FindAll(ctx context.Context) ([]*domain.Payment, error) {
	s.log.Debug("Getting all payments")
	return s.paymentRepo.GetAll(ctx)
}

// FindByUser возвращает платежи подписчика
func (s *paymentService) FindByUser(ctx context.Context, subscriberID string) ([]*domain.Payment, error) {
	s.log.Debug("Getting payments for subscriber: %s", subscriberID)
	return s.paymentRepo.GetBySubscriberID(ctx, subscriberID)
}

// FindBySubscription возвращает платежи подписки
func (s *paymentService) FindBySubscription(ctx context.Context, subscriptionID string) ([]*domain.Payment, error) {
	s.log.Debug("Getting payments for subscription: %s", subscriptionID)
	return s.paymentRepo.GetBySubscriptionID(ctx, subscriptionID)
}

func (s *paymentService) logLookupError(entity, id string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("%s not found: %s", entity, id)
		return
	}
	s.log.Error("Error fetching %s %s: %v", entity, id, err)
}
