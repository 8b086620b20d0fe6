package handlers

import (
	"net/http"

	"github.com/Dhoini/billing-service/internal/service"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// CronHandler ручной запуск периодических задач
type CronHandler struct {
	subscriptionSvc service.SubscriptionService
	log             *logger.Logger
}

// NewCronHandler создает обработчик задач
func NewCronHandler(subscriptionSvc service.SubscriptionService, log *logger.Logger) *CronHandler {
	return &CronHandler{subscriptionSvc: subscriptionSvc, log: log}
}

// RunRenewals выполняет обход продлений и возвращает продленные подписки
func (h *CronHandler) RunRenewals(c *gin.Context) {
	renewed, err := h.subscriptionSvc.CheckRenewals(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "Failed to check renewals")
		return
	}

	h.log.Info("Manual renewal sweep renewed %d subscriptions", len(renewed))
	c.JSON(http.StatusOK, gin.H{
		"renewed":       len(renewed),
		"subscriptions": renewed,
	})
}
