package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/samber/lo"
)

// PaymentRepository интерфейс для работы с платежами
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	Update(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	GetAll(ctx context.Context) ([]*domain.Payment, error)
	GetBySubscriberID(ctx context.Context, subscriberID string) ([]*domain.Payment, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) ([]*domain.Payment, error)
}

// InMemoryPaymentRepository реализация репозитория платежей в памяти
type InMemoryPaymentRepository struct {
	payments map[string]domain.Payment
	mutex    sync.RWMutex
	log      *logger.Logger
}

// NewInMemoryPaymentRepository создает новый репозиторий платежей в памяти
func NewInMemoryPaymentRepository(log *logger.Logger) *InMemoryPaymentRepository {
	return &InMemoryPaymentRepository{
		payments: make(map[string]domain.Payment),
		log:      log,
	}
}

// Create создает новый платеж
func (r *InMemoryPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.payments[payment.ID]; exists {
		return ErrDuplicate
	}
	r.payments[payment.ID] = *payment
	return nil
}

// Update обновляет существующий платеж
func (r *InMemoryPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.payments[payment.ID]; !exists {
		return domain.NewNotFoundError("payment", payment.ID)
	}
	r.payments[payment.ID] = *payment
	return nil
}

// GetByID возвращает платеж по ID
func (r *InMemoryPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	payment, exists := r.payments[id]
	if !exists {
		return nil, domain.NewNotFoundError("payment", id)
	}
	return &payment, nil
}

// GetAll возвращает все платежи
func (r *InMemoryPaymentRepository) GetAll(ctx context.Context) ([]*domain.Payment, error) {
	return r.filter(func(domain.Payment) bool { return true }), nil
}

// GetBySubscriberID возвращает платежи пользователя
func (r *InMemoryPaymentRepository) GetBySubscriberID(ctx context.Context, subscriberID string) ([]*domain.Payment, error) {
	return r.filter(func(p domain.Payment) bool { return p.SubscriberID == subscriberID }), nil
}

// GetBySubscriptionID возвращает платежи подписки
func (r *InMemoryPaymentRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) ([]*domain.Payment, error) {
	return r.filter(func(p domain.Payment) bool {
		return p.SubscriptionID != nil && *p.SubscriptionID == subscriptionID
	}), nil
}

func (r *InMemoryPaymentRepository) filter(keep func(domain.Payment) bool) []*domain.Payment {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	matched := lo.Filter(lo.Values(r.payments), func(p domain.Payment, _ int) bool { return keep(p) })
	result := lo.Map(matched, func(p domain.Payment, _ int) *domain.Payment { return &p })
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}
