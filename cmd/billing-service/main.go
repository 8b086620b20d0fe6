package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dhoini/billing-service/internal/api/rest"
	"github.com/Dhoini/billing-service/internal/api/rest/middleware"
	"github.com/Dhoini/billing-service/internal/config"
	"github.com/Dhoini/billing-service/internal/events"
	"github.com/Dhoini/billing-service/internal/metrics"
	"github.com/Dhoini/billing-service/internal/scheduler"
	"github.com/Dhoini/billing-service/internal/service"
	"github.com/Dhoini/billing-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

const configPath = "config.yml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.New(logger.INFO).Fatalw("Failed to load configuration", "error", err)
	}

	log := logger.New(logger.ParseLevel(cfg.Log.Level)).With("service", cfg.App.Name)
	defer func() { _ = log.Sync() }()
	log.Infow("Billing service starting up...", "env", cfg.App.Env, "storage", cfg.Storage.Driver)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New(log)

	// Хранилище: память или PostgreSQL, опционально с кешем Redis
	store, err := newStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalw("Failed to initialize storage", "error", err)
	}
	defer store.Close()

	// Публикация событий и уведомлений
	bus, err := newBus(ctx, cfg, log)
	if err != nil {
		log.Fatalw("Failed to initialize event bus", "error", err)
	}
	defer bus.Close()

	notifier := events.NewAsyncNotifier(bus.notifier, cfg.Billing.NotifierBuffer, m.Events, log)
	dispatcher := events.NewDispatcher(bus.publisher, notifier, m.Events, log,
		events.WithPublishRetry(cfg.Billing.PublishRetries, 200*time.Millisecond))

	gw := newGateway(cfg, log)

	paymentService := service.NewPaymentService(store.payments, store.subscriptions, store.subscribers, gw, dispatcher, m.Payments, log,
		service.WithGatewayTimeout(cfg.Gateway.Timeout))
	subscriptionService := service.NewSubscriptionService(store.subscriptions, store.plans, store.subscribers,
		paymentService, dispatcher, m.Subscriptions, log,
		service.WithGatewayTimeout(cfg.Gateway.Timeout))

	var renewals *scheduler.RenewalScheduler
	if cfg.Billing.SchedulerEnabled {
		renewals, err = scheduler.NewRenewalScheduler(subscriptionService, cfg.Billing.RenewalSchedule, cfg.Billing.SweepTimeout, log)
		if err != nil {
			log.Fatalw("Failed to create renewal scheduler", "error", err)
		}
		renewals.Start()
	} else {
		log.Infow("Renewal scheduler disabled")
	}

	var auth *middleware.JWTMiddleware
	if cfg.Auth.JWTSecret != "" {
		auth = middleware.NewJWTMiddleware(log, &middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)})
	} else {
		log.Warnw("JWT secret is not set, API is served without authentication")
	}

	router := rest.SetupRouter(rest.RouterDeps{
		Subscriptions: subscriptionService,
		Payments:      paymentService,
		Registry:      m.Registry,
		Auth:          auth,
		Readiness:     store.readiness,
		Log:           log,
	})
	server := rest.NewServer(router, cfg.HTTP, log)

	// Запускаем HTTP сервер в горутине
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	if renewals != nil {
		if err := renewals.Stop(shutdownCtx); err != nil {
			log.Errorw("Renewal scheduler stop error", "error", err)
		}
	}

	if err := notifier.Close(shutdownCtx); err != nil {
		log.Errorw("Notifier did not drain before shutdown", "error", err)
	}

	log.Infow("Cleanup finished. Goodbye!")
}
