package rest

import (
	"github.com/Dhoini/billing-service/internal/api/rest/handlers"
	"github.com/Dhoini/billing-service/internal/api/rest/middleware"
	"github.com/Dhoini/billing-service/internal/service"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps зависимости HTTP API
type RouterDeps struct {
	Subscriptions service.SubscriptionService
	Payments      service.PaymentService
	Registry      *prometheus.Registry
	// Auth если nil, /api/v1 доступен без токена
	Auth      *middleware.JWTMiddleware
	Readiness map[string]handlers.Pinger
	Log       *logger.Logger
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestLogger(deps.Log))
	r.Use(gin.Recovery())

	r.GET("/health", handlers.HealthCheck)
	r.GET("/ready", handlers.ReadinessCheck(deps.Readiness))

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	subscriptionHandler := handlers.NewSubscriptionHandler(deps.Subscriptions, deps.Log)
	paymentHandler := handlers.NewPaymentHandler(deps.Payments, deps.Log)
	cronHandler := handlers.NewCronHandler(deps.Subscriptions, deps.Log)

	v1 := r.Group("/api/v1")
	if deps.Auth != nil {
		v1.Use(deps.Auth.RequireAuth())
	}
	{
		subscriptions := v1.Group("/subscriptions")
		{
			subscriptions.GET("", subscriptionHandler.ListSubscriptions)
			subscriptions.GET("/:id", subscriptionHandler.GetSubscription)
			subscriptions.GET("/user/:userId", subscriptionHandler.ListUserSubscriptions)
			subscriptions.GET("/user/:userId/active", subscriptionHandler.GetActiveUserSubscription)
			subscriptions.POST("", subscriptionHandler.CreateSubscription)
			subscriptions.POST("/:id/cancel", subscriptionHandler.CancelSubscription)
			subscriptions.POST("/:id/renew", subscriptionHandler.RenewSubscription)
		}

		payments := v1.Group("/payments")
		{
			payments.GET("", paymentHandler.ListPayments)
			payments.GET("/:id", paymentHandler.GetPayment)
			payments.GET("/user/:userId", paymentHandler.ListUserPayments)
			payments.GET("/subscription/:subscriptionId", paymentHandler.ListSubscriptionPayments)
			payments.POST("", paymentHandler.CreatePayment)
			payments.POST("/:id/refund", paymentHandler.RefundPayment)
		}

		cron := v1.Group("/cron")
		{
			cron.POST("/subscriptions/renewals", cronHandler.RunRenewals)
		}
	}

	return r
}
