package repository

import (
	"context"
	"sync"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
)

// PlanRepository чтение тарифных планов (каталогом управляет внешний сервис)
type PlanRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Plan, error)
}

// SubscriberRepository чтение подписчиков (учетными записями управляет внешний сервис)
type SubscriberRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Subscriber, error)
}

// InMemoryPlanRepository реализация каталога планов в памяти
type InMemoryPlanRepository struct {
	plans map[string]domain.Plan
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemoryPlanRepository создает новый репозиторий планов в памяти
func NewInMemoryPlanRepository(log *logger.Logger, plans ...domain.Plan) *InMemoryPlanRepository {
	r := &InMemoryPlanRepository{
		plans: make(map[string]domain.Plan, len(plans)),
		log:   log,
	}
	for _, p := range plans {
		r.plans[p.ID] = p
	}
	return r
}

// Save добавляет или заменяет план
func (r *InMemoryPlanRepository) Save(plan domain.Plan) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.plans[plan.ID] = plan
}

// GetByID возвращает план по ID
func (r *InMemoryPlanRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	plan, exists := r.plans[id]
	if !exists {
		return nil, domain.NewNotFoundError("plan", id)
	}
	return &plan, nil
}

// InMemorySubscriberRepository реализация справочника подписчиков в памяти
type InMemorySubscriberRepository struct {
	subscribers map[string]domain.Subscriber
	mutex       sync.RWMutex
	log         *logger.Logger
}

// NewInMemorySubscriberRepository создает новый репозиторий подписчиков в памяти
func NewInMemorySubscriberRepository(log *logger.Logger, subscribers ...domain.Subscriber) *InMemorySubscriberRepository {
	r := &InMemorySubscriberRepository{
		subscribers: make(map[string]domain.Subscriber, len(subscribers)),
		log:         log,
	}
	for _, s := range subscribers {
		r.subscribers[s.ID] = s
	}
	return r
}

// Save добавляет или заменяет подписчика
func (r *InMemorySubscriberRepository) Save(subscriber domain.Subscriber) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.subscribers[subscriber.ID] = subscriber
}

// GetByID возвращает подписчика по ID
func (r *InMemorySubscriberRepository) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	subscriber, exists := r.subscribers[id]
	if !exists {
		return nil, domain.NewNotFoundError("subscriber", id)
	}
	return &subscriber, nil
}
