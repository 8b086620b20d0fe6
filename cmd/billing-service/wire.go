package main

import (
	"context"
	"fmt"

	"github.com/Dhoini/billing-service/internal/api/rest/handlers"
	"github.com/Dhoini/billing-service/internal/config"
	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/internal/events"
	"github.com/Dhoini/billing-service/internal/gateway"
	"github.com/Dhoini/billing-service/internal/kafka"
	"github.com/Dhoini/billing-service/internal/repository"
	"github.com/Dhoini/billing-service/internal/repository/postgres"
	"github.com/Dhoini/billing-service/internal/stripe"
	"github.com/Dhoini/billing-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// storage репозитории и функции освобождения ресурсов
type storage struct {
	subscriptions repository.SubscriptionRepository
	payments      repository.PaymentRepository
	plans         repository.PlanRepository
	subscribers   repository.SubscriberRepository
	readiness     map[string]handlers.Pinger
	closers       []func()
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	s := &storage{readiness: make(map[string]handlers.Pinger)}

	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.NewConnection(ctx, cfg.Database.DSN, postgres.PoolConfig{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			ConnectTimeout:  cfg.Database.ConnectTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.readiness["postgres"] = pool.Ping

		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, pool, log); err != nil {
				s.Close()
				return nil, err
			}
		}

		s.subscriptions = repository.NewPostgresSubscriptionRepository(pool, log)
		s.payments = repository.NewPostgresPaymentRepository(pool, log)
		s.plans = repository.NewPostgresPlanRepository(pool, log)
		s.subscribers = repository.NewPostgresSubscriberRepository(pool, log)
		log.Infow("Using PostgreSQL storage")
	default:
		plans, subscribers, err := catalogFromConfig(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		s.subscriptions = repository.NewInMemorySubscriptionRepository(log)
		s.payments = repository.NewInMemoryPaymentRepository(log)
		s.plans = repository.NewInMemoryPlanRepository(log, plans...)
		s.subscribers = repository.NewInMemorySubscriberRepository(log, subscribers...)
		log.Infow("Using in-memory storage", "plans", len(plans), "subscribers", len(subscribers))
	}

	if cfg.Redis.Enabled {
		client, err := repository.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			// Не фатально, работаем без кеша
			log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		} else {
			cache := repository.NewRedisCacheRepository(client, cfg.Redis.TTL, log)
			s.closers = append(s.closers, func() {
				if err := cache.Close(); err != nil {
					log.Errorw("Error closing Redis connection", "error", err)
				}
			})
			s.readiness["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
			s.subscriptions = repository.NewCachedSubscriptionRepository(s.subscriptions, cache, log)
			log.Infow("Using cached subscription repository")
		}
	}

	return s, nil
}

func catalogFromConfig(cfg config.CatalogConfig) ([]domain.Plan, []domain.Subscriber, error) {
	plans := make([]domain.Plan, 0, len(cfg.Plans))
	for _, p := range cfg.Plans {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog plan %s: invalid price %q: %w", p.ID, p.Price, err)
		}
		status := domain.PlanStatus(p.Status)
		if status == "" {
			status = domain.PlanStatusActive
		}
		plans = append(plans, domain.Plan{
			ID:       p.ID,
			Name:     p.Name,
			Price:    price,
			Duration: domain.PlanDuration(p.Duration),
			Status:   status,
		})
	}

	subscribers := make([]domain.Subscriber, 0, len(cfg.Subscribers))
	for _, s := range cfg.Subscribers {
		subscribers = append(subscribers, domain.Subscriber{ID: s.ID, Email: s.Email, Name: s.Name, Phone: s.Phone})
	}
	return plans, subscribers, nil
}

// bus получатели событий и уведомлений
type bus struct {
	publisher events.Publisher
	notifier  events.Notifier
	closers   []func() error
	log       *logger.Logger
}

func (b *bus) Close() {
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil {
			b.log.Errorw("Error closing event bus", "error", err)
		}
	}
}

func newBus(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bus, error) {
	if !cfg.Kafka.Enabled {
		log.Infow("Kafka disabled, events are written to the log")
		return &bus{publisher: events.NewLogPublisher(log), notifier: events.NewLogNotifier(log), log: log}, nil
	}

	kcfg := kafka.NewConfig(cfg.Kafka.Brokers)
	kcfg.ClientID = cfg.Kafka.ClientID
	if cfg.Kafka.NotificationsTopic != "" {
		kcfg.NotificationsTopic = cfg.Kafka.NotificationsTopic
	}

	if cfg.Kafka.EnsureTopics {
		if err := kafka.EnsureTopics(ctx, kcfg, log); err != nil {
			// Топики могут создаваться автоматически брокером
			log.Warnw("Failed to ensure Kafka topics", "error", err)
		}
	}

	producer, err := kafka.NewSyncProducer(kcfg, log)
	if err != nil {
		return nil, err
	}
	publisher := kafka.NewEventPublisher(producer, log)

	notifier, err := kafka.NewNotifier(kcfg, log)
	if err != nil {
		_ = publisher.Close()
		return nil, err
	}

	log.Infow("Kafka event bus initialized", "brokers", kcfg.Brokers)
	return &bus{
		publisher: publisher,
		notifier:  notifier,
		closers:   []func() error{notifier.Close, publisher.Close},
		log:       log,
	}, nil
}

func newGateway(cfg *config.Config, log *logger.Logger) gateway.Gateway {
	mode := gateway.Mode(cfg.Gateway.Mode)
	if mode == gateway.ModeLive && cfg.Gateway.Stripe.APIKey != "" {
		log.Infow("Using Stripe payment gateway", "currency", cfg.Gateway.Stripe.Currency)
		return stripe.NewGateway(stripe.Config{
			APIKey:        cfg.Gateway.Stripe.APIKey,
			Currency:      cfg.Gateway.Stripe.Currency,
			PaymentMethod: cfg.Gateway.Stripe.PaymentMethod,
		}, log)
	}
	if mode == gateway.ModeLive {
		log.Warnw("Stripe API key is not set, live mode uses the built-in gateway")
	}
	return gateway.NewSandboxGateway(mode, log)
}
