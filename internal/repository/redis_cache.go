package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// Префиксы ключей для различных типов данных
	subscriptionKeyPrefix   = "subscription:"
	subscriberSubsKeyPrefix = "subscriber_subscriptions:"

	// DefaultCacheTTL TTL для кэша
	DefaultCacheTTL = 15 * time.Minute
)

// NewRedisClient создает клиент Redis и проверяет соединение
func NewRedisClient(ctx context.Context, addr, password string, db int, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", addr)
	return client, nil
}

// RedisCacheRepository реализует кеширование подписок в Redis
type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCacheRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCacheRepository{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheSubscription кеширует подписку в Redis
func (r *RedisCacheRepository) CacheSubscription(ctx context.Context, sub *domain.Subscription) error {
	return r.set(ctx, subscriptionKeyPrefix+sub.ID, sub)
}

// GetCachedSubscription получает подписку из кеша. Промах кеша дает (nil, nil).
func (r *RedisCacheRepository) GetCachedSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	found, err := r.get(ctx, subscriptionKeyPrefix+subscriptionID, &sub)
	if err != nil || !found {
		return nil, err
	}
	return &sub, nil
}

// DeleteCachedSubscription удаляет подписку из кеша
func (r *RedisCacheRepository) DeleteCachedSubscription(ctx context.Context, subscriptionID string) error {
	return r.del(ctx, subscriptionKeyPrefix+subscriptionID)
}

// CacheSubscriberSubscriptions кеширует список подписок пользователя
func (r *RedisCacheRepository) CacheSubscriberSubscriptions(ctx context.Context, subscriberID string, subs []*domain.Subscription) error {
	return r.set(ctx, subscriberSubsKeyPrefix+subscriberID, subs)
}

// GetCachedSubscriberSubscriptions получает список подписок пользователя из кеша
func (r *RedisCacheRepository) GetCachedSubscriberSubscriptions(ctx context.Context, subscriberID string) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	found, err := r.get(ctx, subscriberSubsKeyPrefix+subscriberID, &subs)
	if err != nil || !found {
		return nil, err
	}
	return subs, nil
}

// InvalidateSubscriberSubscriptions удаляет кеш подписок пользователя
func (r *RedisCacheRepository) InvalidateSubscriberSubscriptions(ctx context.Context, subscriberID string) error {
	return r.del(ctx, subscriberSubsKeyPrefix+subscriberID)
}

func (r *RedisCacheRepository) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	r.log.Debugw("Cached value", "key", key)
	return nil
}

func (r *RedisCacheRepository) get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s from cache: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisCacheRepository) del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from cache: %w", key, err)
	}
	return nil
}
