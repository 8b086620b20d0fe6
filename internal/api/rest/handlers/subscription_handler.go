package handlers

import (
	"net/http"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/internal/service"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/Dhoini/billing-service/pkg/req"
	"github.com/gin-gonic/gin"
)

// SubscriptionHandler обработчик для подписок
type SubscriptionHandler struct {
	subscriptionSvc service.SubscriptionService
	log             *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(subscriptionSvc service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionSvc: subscriptionSvc,
		log:             log,
	}
}

// CreateSubscription создает новую подписку
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	body, err := req.HandleBody[domain.SubscriptionRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	subscription, err := h.subscriptionSvc.Create(c.Request.Context(), *body)
	if err != nil {
		respondError(c, h.log, err, "Failed to create subscription")
		return
	}

	h.log.Info("Created subscription with ID: %s", subscription.ID)
	c.JSON(http.StatusCreated, subscription)
}

// GetSubscription возвращает подписку по ID
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	subscription, err := h.subscriptionSvc.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "Failed to get subscription")
		return
	}
	c.JSON(http.StatusOK, subscription)
}

// ListSubscriptions возвращает список подписок
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	subscriptions, err := h.subscriptionSvc.FindAll(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "Failed to get subscriptions")
		return
	}

	h.log.Debug("Returned %d subscriptions", len(subscriptions))
	c.JSON(http.StatusOK, subscriptions)
}

// ListUserSubscriptions возвращает подписки пользователя
func (h *SubscriptionHandler) ListUserSubscriptions(c *gin.Context) {
	userID := c.Param("userId")
	subscriptions, err := h.subscriptionSvc.FindByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err, "Failed to get subscriptions for user")
		return
	}

	h.log.Debug("Returned %d subscriptions for user %s", len(subscriptions), userID)
	c.JSON(http.StatusOK, subscriptions)
}

// GetActiveUserSubscription возвращает активную подписку пользователя
func (h *SubscriptionHandler) GetActiveUserSubscription(c *gin.Context) {
	subscription, err := h.subscriptionSvc.FindActiveByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, h.log, err, "Failed to get active subscription")
		return
	}
	c.JSON(http.StatusOK, subscription)
}

// CancelSubscription отменяет подписку
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	id := c.Param("id")
	subscription, err := h.subscriptionSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err, "Failed to cancel subscription")
		return
	}

	h.log.Info("Canceled subscription with ID: %s", id)
	c.JSON(http.StatusOK, subscription)
}

// RenewSubscription продлевает подписку вручную
func (h *SubscriptionHandler) RenewSubscription(c *gin.Context) {
	id := c.Param("id")
	subscription, err := h.subscriptionSvc.Renew(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err, "Failed to renew subscription")
		return
	}

	h.log.Info("Renewed subscription with ID: %s", id)
	c.JSON(http.StatusOK, subscription)
}
