package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/samber/lo"
)

// InMemorySubscriptionRepository реализация репозитория подписок в памяти.
// Хранит копии, поэтому изменения вызывающей стороны не попадают в хранилище без Update.
type InMemorySubscriptionRepository struct {
	subscriptions map[string]domain.Subscription
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemorySubscriptionRepository создает новый репозиторий подписок в памяти
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subscriptions: make(map[string]domain.Subscription),
		log:           log,
	}
}

// Create создает новую подписку
func (r *InMemorySubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.subscriptions[sub.ID]; exists {
		return ErrDuplicate
	}
	if sub.Status.IsOpen() && r.hasOtherOpen(sub.SubscriberID, sub.ID) {
		r.log.Warnw("Open subscription already exists", "subscriberID", sub.SubscriberID)
		return domain.ErrDuplicateActiveSubscription
	}

	r.subscriptions[sub.ID] = *sub
	return nil
}

// Update обновляет существующую подписку
func (r *InMemorySubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.subscriptions[sub.ID]; !exists {
		return domain.NewNotFoundError("subscription", sub.ID)
	}
	if sub.Status.IsOpen() && r.hasOtherOpen(sub.SubscriberID, sub.ID) {
		return domain.ErrDuplicateActiveSubscription
	}

	r.subscriptions[sub.ID] = *sub
	return nil
}

// hasOtherOpen вызывается под блокировкой
func (r *InMemorySubscriptionRepository) hasOtherOpen(subscriberID, exceptID string) bool {
	for id, s := range r.subscriptions {
		if id != exceptID && s.SubscriberID == subscriberID && s.Status.IsOpen() {
			return true
		}
	}
	return false
}

// GetByID возвращает подписку по ID
func (r *InMemorySubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sub, exists := r.subscriptions[id]
	if !exists {
		return nil, domain.NewNotFoundError("subscription", id)
	}
	return &sub, nil
}

// GetAll возвращает все подписки
func (r *InMemorySubscriptionRepository) GetAll(ctx context.Context) ([]*domain.Subscription, error) {
	return r.filter(func(domain.Subscription) bool { return true }, byCreatedDesc), nil
}

// GetBySubscriberID возвращает подписки пользователя
func (r *InMemorySubscriptionRepository) GetBySubscriberID(ctx context.Context, subscriberID string) ([]*domain.Subscription, error) {
	return r.filter(func(s domain.Subscription) bool { return s.SubscriberID == subscriberID }, byCreatedDesc), nil
}

// GetOpenBySubscriberID возвращает активную или ожидающую подписку пользователя
func (r *InMemorySubscriptionRepository) GetOpenBySubscriberID(ctx context.Context, subscriberID string) (*domain.Subscription, error) {
	open := r.filter(func(s domain.Subscription) bool {
		return s.SubscriberID == subscriberID && s.Status.IsOpen()
	}, byCreatedDesc)
	if len(open) == 0 {
		return nil, domain.NewNotFoundError("open subscription for subscriber", subscriberID)
	}
	return open[0], nil
}

// GetByStatus возвращает подписки в статусе
func (r *InMemorySubscriptionRepository) GetByStatus(ctx context.Context, status domain.SubscriptionStatus) ([]*domain.Subscription, error) {
	return r.filter(func(s domain.Subscription) bool { return s.Status == status }, byCreatedDesc), nil
}

// GetDueForRenewal возвращает подписки, которые пора продлевать
func (r *InMemorySubscriptionRepository) GetDueForRenewal(ctx context.Context, now time.Time) ([]*domain.Subscription, error) {
	return r.filter(func(s domain.Subscription) bool { return s.IsDue(now) }, byEndDateAsc), nil
}

func (r *InMemorySubscriptionRepository) filter(keep func(domain.Subscription) bool, less func(a, b *domain.Subscription) bool) []*domain.Subscription {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	matched := lo.Filter(lo.Values(r.subscriptions), func(s domain.Subscription, _ int) bool { return keep(s) })
	result := lo.Map(matched, func(s domain.Subscription, _ int) *domain.Subscription { return &s })
	sort.Slice(result, func(i, j int) bool { return less(result[i], result[j]) })
	return result
}

func byCreatedDesc(a, b *domain.Subscription) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func byEndDateAsc(a, b *domain.Subscription) bool {
	if a.EndDate.Equal(b.EndDate) {
		return a.ID < b.ID
	}
	return a.EndDate.Before(b.EndDate)
}
