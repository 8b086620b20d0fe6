package repository

import (
	"context"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
)

// SubscriptionRepository определяет методы для работы с хранилищем подписок.
type SubscriptionRepository interface {
	// Create сохраняет новую подписку. Если у подписчика уже есть активная или
	// ожидающая подписка, возвращает domain.ErrDuplicateActiveSubscription.
	// Проверка атомарна на уровне хранилища.
	Create(ctx context.Context, sub *domain.Subscription) error

	// Update сохраняет подписку целиком.
	Update(ctx context.Context, sub *domain.Subscription) error

	// GetByID возвращает подписку по ее ID.
	GetByID(ctx context.Context, id string) (*domain.Subscription, error)

	// GetAll возвращает все подписки, новые первыми.
	GetAll(ctx context.Context) ([]*domain.Subscription, error)

	// GetBySubscriberID возвращает все подписки пользователя.
	GetBySubscriberID(ctx context.Context, subscriberID string) ([]*domain.Subscription, error)

	// GetOpenBySubscriberID возвращает активную или ожидающую подписку пользователя либо ErrNotFound.
	GetOpenBySubscriberID(ctx context.Context, subscriberID string) (*domain.Subscription, error)

	// GetByStatus возвращает подписки в указанном статусе.
	GetByStatus(ctx context.Context, status domain.SubscriptionStatus) ([]*domain.Subscription, error)

	// GetDueForRenewal возвращает активные и ожидающие подписки с EndDate <= now,
	// упорядоченные по EndDate.
	GetDueForRenewal(ctx context.Context, now time.Time) ([]*domain.Subscription, error)
}
