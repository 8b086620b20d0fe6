package repository

import (
	"context"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
)

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием.
// Кешируются только чтения по ID и по подписчику; выборки для продления и
// проверки уникальности всегда идут в основное хранилище.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(repo SubscriptionRepository, cache *RedisCacheRepository, log *logger.Logger) *CachedSubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create сохраняет подписку в БД и кеширует ее
func (r *CachedSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Create(ctx, sub); err != nil {
		return err
	}
	r.refresh(ctx, sub)
	return nil
}

// Update обновляет подписку в БД и кеше
func (r *CachedSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Update(ctx, sub); err != nil {
		// Значение в кеше могло устареть
		if delErr := r.cache.DeleteCachedSubscription(ctx, sub.ID); delErr != nil {
			r.log.Warnw("Failed to evict subscription after failed update", "error", delErr, "subscriptionID", sub.ID)
		}
		return err
	}
	r.refresh(ctx, sub)
	return nil
}

func (r *CachedSubscriptionRepository) refresh(ctx context.Context, sub *domain.Subscription) {
	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription", "error", err, "subscriptionID", sub.ID)
	}
	if err := r.cache.InvalidateSubscriberSubscriptions(ctx, sub.SubscriberID); err != nil {
		r.log.Warnw("Failed to invalidate subscriber subscriptions cache", "error", err, "subscriberID", sub.SubscriberID)
	}
}

// GetByID получает подписку по ID (сначала из кеша, потом из БД)
func (r *CachedSubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	cached, err := r.cache.GetCachedSubscription(ctx, id)
	if err != nil {
		r.log.Warnw("Error getting subscription from cache", "error", err, "subscriptionID", id)
	}
	if cached != nil {
		r.log.Debugw("Subscription found in cache", "subscriptionID", id)
		return cached, nil
	}

	sub, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription after fetching", "error", err, "subscriptionID", id)
	}
	return sub, nil
}

// GetBySubscriberID возвращает подписки пользователя (сначала из кеша, потом из БД)
func (r *CachedSubscriptionRepository) GetBySubscriberID(ctx context.Context, subscriberID string) ([]*domain.Subscription, error) {
	cached, err := r.cache.GetCachedSubscriberSubscriptions(ctx, subscriberID)
	if err != nil {
		r.log.Warnw("Error getting subscriber subscriptions from cache", "error", err, "subscriberID", subscriberID)
	}
	if len(cached) > 0 {
		return cached, nil
	}

	subs, err := r.repo.GetBySubscriberID(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if len(subs) > 0 {
		if err := r.cache.CacheSubscriberSubscriptions(ctx, subscriberID, subs); err != nil {
			r.log.Warnw("Failed to cache subscriber subscriptions", "error", err, "subscriberID", subscriberID)
		}
	}
	return subs, nil
}

// GetAll всегда читает из БД
func (r *CachedSubscriptionRepository) GetAll(ctx context.Context) ([]*domain.Subscription, error) {
	return r.repo.GetAll(ctx)
}

// GetOpenBySubscriberID всегда читает из БД
func (r *CachedSubscriptionRepository) GetOpenBySubscriberID(ctx context.Context, subscriberID string) (*domain.Subscription, error) {
	return r.repo.GetOpenBySubscriberID(ctx, subscriberID)
}

// GetByStatus всегда читает из БД
func (r *CachedSubscriptionRepository) GetByStatus(ctx context.Context, status domain.SubscriptionStatus) ([]*domain.Subscription, error) {
	return r.repo.GetByStatus(ctx, status)
}

// GetDueForRenewal всегда читает из БД
func (r *CachedSubscriptionRepository) GetDueForRenewal(ctx context.Context, now time.Time) ([]*domain.Subscription, error) {
	return r.repo.GetDueForRenewal(ctx, now)
}
