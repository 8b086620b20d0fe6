package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/internal/events"
	"github.com/Dhoini/billing-service/internal/metrics"
	"github.com/Dhoini/billing-service/internal/repository"
	"github.com/Dhoini/billing-service/pkg/logger"
)

// SubscriptionService интерфейс сервиса для работы с подписками
type SubscriptionService interface {
	Create(ctx context.Context, req domain.SubscriptionRequest) (*domain.Subscription, error)
	Cancel(ctx context.Context, id string) (*domain.Subscription, error)
	Renew(ctx context.Context, id string) (*domain.Subscription, error)
	MarkAsPending(ctx context.Context, id string) (*domain.Subscription, error)
	MarkAsExpired(ctx context.Context, id string) (*domain.Subscription, error)

	// CheckRenewals продлевает все подписки с истекшим периодом.
	// Ошибку возвращает только выборка подписок к продлению.
	CheckRenewals(ctx context.Context) ([]*domain.Subscription, error)

	FindAll(ctx context.Context) ([]*domain.Subscription, error)
	FindByID(ctx context.Context, id string) (*domain.Subscription, error)
	FindByUser(ctx context.Context, subscriberID string) ([]*domain.Subscription, error)
	FindActiveByUser(ctx context.Context, subscriberID string) (*domain.Subscription, error)
}

type subscriptionService struct {
	subscriptionRepo repository.SubscriptionRepository
	planRepo         repository.PlanRepository
	subscriberRepo   repository.SubscriberRepository
	payments         PaymentService
	dispatcher       *events.Dispatcher
	metrics          metrics.SubscriptionMetrics
	log              *logger.Logger
	opts             options
}

// NewSubscriptionService создает новый сервис для работы с подписками
func NewSubscriptionService(
	subscriptionRepo repository.SubscriptionRepository,
	planRepo repository.PlanRepository,
	subscriberRepo repository.SubscriberRepository,
	payments PaymentService,
	dispatcher *events.Dispatcher,
	m metrics.SubscriptionMetrics,
	log *logger.Logger,
	opts ...Option,
) SubscriptionService {
	return &subscriptionService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		subscriberRepo:   subscriberRepo,
		payments:         payments,
		dispatcher:       dispatcher,
		metrics:          m,
		log:              log,
		opts:             newOptions(opts),
	}
}

// Create создает новую подписку и списывает первый платеж
func (s *subscriptionService) Create(ctx context.Context, req domain.SubscriptionRequest) (*domain.Subscription, error) {
	s.log.Debug("Creating subscription for subscriber: %s, plan: %s", req.SubscriberID, req.PlanID)

	if _, err := s.subscriberRepo.GetByID(ctx, req.SubscriberID); err != nil {
		s.logLookupError("subscriber", req.SubscriberID, err)
		return nil, err
	}

	plan, err := s.planRepo.GetByID(ctx, req.PlanID)
	if err != nil {
		s.logLookupError("plan", req.PlanID, err)
		return nil, err
	}

	// Проверка активности плана
	if !plan.IsActive() {
		s.log.Warn("Subscription plan is not active: %s", req.PlanID)
		return nil, domain.ErrPlanInactive
	}

	open, err := s.subscriptionRepo.GetOpenBySubscriberID(ctx, req.SubscriberID)
	switch {
	case err == nil:
		s.log.Warn("Subscriber %s already has subscription %s in status %s", req.SubscriberID, open.ID, open.Status)
		return nil, domain.ErrDuplicateActiveSubscription
	case !errors.Is(err, domain.ErrNotFound):
		s.log.Error("Error checking open subscriptions for subscriber %s: %v", req.SubscriberID, err)
		return nil, err
	}

	now := s.opts.now()
	sub, err := domain.NewSubscription(req.SubscriberID, *plan, now)
	if err != nil {
		s.log.Warn("Invalid subscription request for subscriber %s: %v", req.SubscriberID, err)
		return nil, err
	}

	// Ограничение хранилища остается окончательной проверкой при гонке
	if err := s.subscriptionRepo.Create(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrDuplicateActiveSubscription) {
			s.log.Warn("Concurrent subscription creation rejected for subscriber %s", req.SubscriberID)
		} else {
			s.log.Error("Error saving subscription: %v", err)
		}
		return nil, err
	}

	s.metrics.IncTransition(string(sub.Status))
	s.flushSubscription(ctx, sub, now, domain.EventSubscriptionCreated, domain.NotificationSubscriptionCreated)

	// Подписка уже создана, исход первого платежа на нее не влияет
	payment, err := s.payments.CreateForSubscription(ctx, sub, plan)
	if err != nil {
		s.log.Error("Error creating initial payment for subscription %s: %v", sub.ID, err)
	} else if payment, err = s.payments.Process(ctx, payment); err != nil {
		s.log.Error("Error processing initial payment for subscription %s: %v", sub.ID, err)
	} else if payment.Status != domain.PaymentStatusApproved {
		s.log.Warn("Initial payment %s for subscription %s was not approved: %s", payment.ID, sub.ID, payment.FailureReason)
	}

	s.log.Info("Subscription created: %s for subscriber: %s", sub.ID, sub.SubscriberID)
	return sub, nil
}

// Cancel отменяет активную или ожидающую подписку
func (s *subscriptionService) Cancel(ctx context.Context, id string) (*domain.Subscription, error) {
	s.log.Debug("Canceling subscription: %s", id)

	sub, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	if err := sub.Cancel(now); err != nil {
		s.log.Warn("Cannot cancel subscription %s: %v", id, err)
		return nil, err
	}

	if err := s.save(ctx, sub); err != nil {
		return nil, err
	}

	s.flushSubscription(ctx, sub, now, domain.EventSubscriptionCancelled, domain.NotificationSubscriptionCancelled)
	s.log.Info("Subscription canceled: %s", id)
	return sub, nil
}

// Renew продлевает подписку на период плана от предыдущей даты окончания.
// Продление выполняется только после одобрения платежа; при отказе возвращается
// *domain.PaymentDeclinedError, а подписка остается без изменений.
func (s *subscriptionService) Renew(ctx context.Context, id string) (*domain.Subscription, error) {
	s.log.Debug("Renewing subscription: %s", id)

	sub, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.Status.IsTerminal() {
		s.log.Warn("Cannot renew subscription %s in status %s", id, sub.Status)
		return nil, domain.NewTransitionError("subscription", sub.ID, string(sub.Status), "renew")
	}

	plan, err := s.planRepo.GetByID(ctx, sub.PlanID)
	if err != nil {
		s.logLookupError("plan", sub.PlanID, err)
		return nil, err
	}

	newEndDate := sub.NextEndDate(*plan)

	payment, err := s.payments.CreateForSubscription(ctx, sub, plan)
	if err != nil {
		return nil, err
	}
	payment, err = s.payments.Process(ctx, payment)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentStatusApproved {
		s.log.Warn("Renewal payment %s for subscription %s declined: %s", payment.ID, sub.ID, payment.FailureReason)
		return nil, &domain.PaymentDeclinedError{
			SubscriptionID: sub.ID,
			PaymentID:      payment.ID,
			Reason:         payment.FailureReason,
		}
	}

	now := s.opts.now()
	if err := sub.MarkAsActive(newEndDate, now); err != nil {
		s.log.Warn("Cannot activate subscription %s: %v", id, err)
		return nil, err
	}

	if err := s.save(ctx, sub); err != nil {
		return nil, err
	}

	s.flushSubscription(ctx, sub, now, domain.EventSubscriptionRenewed, domain.NotificationSubscriptionRenewed)
	s.log.Info("Subscription renewed: %s until %s", id, sub.EndDate.Format("2006-01-02"))
	return sub, nil
}

// MarkAsPending фиксирует неудачное продление. Третья неудача подряд переводит подписку в expired.
func (s *subscriptionService) MarkAsPending(ctx context.Context, id string) (*domain.Subscription, error) {
	s.log.Debug("Marking subscription as pending: %s", id)

	sub, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	expired, err := sub.MarkAsPending(now)
	if err != nil {
		s.log.Warn("Cannot mark subscription %s as pending: %v", id, err)
		return nil, err
	}

	if err := s.save(ctx, sub); err != nil {
		return nil, err
	}

	if expired {
		s.flushSubscription(ctx, sub, now, domain.EventSubscriptionExpired, domain.NotificationSubscriptionExpired)
		s.log.Warn("Subscription %s expired after %d failed payment attempts", id, sub.FailedPaymentAttempts)
		return sub, nil
	}

	s.dispatcher.Flush(ctx, events.NewOutbox().
		AddEvent(events.NewSubscriptionEvent(domain.EventSubscriptionPending, sub, now)))
	s.log.Info("Subscription marked as pending: %s (attempt %d)", id, sub.FailedPaymentAttempts)
	return sub, nil
}

// MarkAsExpired переводит подписку в expired
func (s *subscriptionService) MarkAsExpired(ctx context.Context, id string) (*domain.Subscription, error) {
	s.log.Debug("Marking subscription as expired: %s", id)

	sub, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	if err := sub.MarkAsExpired(now); err != nil {
		s.log.Warn("Cannot expire subscription %s: %v", id, err)
		return nil, err
	}

	if err := s.save(ctx, sub); err != nil {
		return nil, err
	}

	s.dispatcher.Flush(ctx, events.NewOutbox().
		AddEvent(events.NewSubscriptionEvent(domain.EventSubscriptionExpired, sub, now)))
	s.log.Info("Subscription expired: %s", id)
	return sub, nil
}

// CheckRenewals обходит подписки с истекшим периодом и по очереди продлевает их.
// Неудачное продление переводит подписку в pending, ошибка этого перевода только логируется.
func (s *subscriptionService) CheckRenewals(ctx context.Context) ([]*domain.Subscription, error) {
	start := s.opts.now()
	s.log.Info("Starting renewal sweep")

	due, err := s.subscriptionRepo.GetDueForRenewal(ctx, start)
	if err != nil {
		s.log.Error("Error fetching subscriptions due for renewal: %v", err)
		return nil, err
	}

	renewed := make([]*domain.Subscription, 0, len(due))
	for _, sub := range due {
		if ctx.Err() != nil {
			s.log.Warnw("Renewal sweep interrupted", "processed", len(renewed), "due", len(due), "error", ctx.Err())
			break
		}

		result, err := s.Renew(ctx, sub.ID)
		if err == nil {
			s.metrics.IncRenewalSucceeded()
			renewed = append(renewed, result)
			continue
		}

		s.metrics.IncRenewalFailed()
		s.log.Warnw("Error renewing subscription", "subscriptionID", sub.ID, "error", err)

		if _, err := s.MarkAsPending(ctx, sub.ID); err != nil {
			s.log.Errorw("Error marking subscription as pending", "subscriptionID", sub.ID, "error", err)
		}
	}

	s.metrics.ObserveSweep(s.opts.now().Sub(start), len(due))
	s.log.Infow("Renewal sweep finished", "due", len(due), "renewed", len(renewed))
	return renewed, nil
}

// FindAll возвращает все подписки
func (s *subscriptionService) FindAll(ctx context.Context) ([]*domain.Subscription, error) {
	s.log.Debug("Getting all subscriptions")
	return s.subscriptionRepo.GetAll(ctx)
}

// FindByID возвращает подписку по ID
func (s *subscriptionService) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := s.subscriptionRepo.GetByID(ctx, id)
	if err != nil {
		s.logLookupError("subscription", id, err)
		return nil, err
	}
	return sub, nil
}

// FindByUser возвращает подписки подписчика
func (s *subscriptionService) FindByUser(ctx context.Context, subscriberID string) ([]*domain.Subscription, error) {
	s.log.Debug("Getting subscriptions for subscriber: %s", subscriberID)
	return s.subscriptionRepo.GetBySubscriberID(ctx, subscriberID)
}

// FindActiveByUser возвращает активную подписку подписчика либо ErrNotFound
func (s *subscriptionService) FindActiveByUser(ctx context.Context, subscriberID string) (*domain.Subscription, error) {
	s.log.Debug("Getting active subscription for subscriber: %s", subscriberID)

	sub, err := s.subscriptionRepo.GetOpenBySubscriberID(ctx, subscriberID)
	if err != nil {
		s.logLookupError("active subscription of subscriber", subscriberID, err)
		return nil, err
	}
	if sub.Status != domain.SubscriptionStatusActive {
		return nil, domain.NewNotFoundError("active subscription of subscriber", subscriberID)
	}
	return sub, nil
}

func (s *subscriptionService) save(ctx context.Context, sub *domain.Subscription) error {
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		s.log.Error("Error updating subscription %s: %v", sub.ID, err)
		return err
	}
	s.metrics.IncTransition(string(sub.Status))
	return nil
}

func (s *subscriptionService) flushSubscription(ctx context.Context, sub *domain.Subscription, now time.Time, name string, kind domain.NotificationKind) {
	event := events.NewSubscriptionEvent(name, sub, now)
	s.dispatcher.Flush(ctx, events.NewOutbox().
		AddEvent(event).
		AddNotification(events.NewNotification(kind, sub.SubscriberID, event.Payload, now)))
}

func (s *subscriptionService) logLookupError(entity, id string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("%s not found: %s", entity, id)
		return
	}
	s.log.Error("Error fetching %s %s: %v", entity, id, err)
}
