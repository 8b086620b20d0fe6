package handlers

import (
	"net/http"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/internal/service"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/Dhoini/billing-service/pkg/req"
	"github.com/gin-gonic/gin"
)

// PaymentHandler обработчик для платежей
type PaymentHandler struct {
	paymentSvc service.PaymentService
	log        *logger.Logger
}

// NewPaymentHandler создает новый обработчик платежей
func NewPaymentHandler(paymentSvc service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentSvc: paymentSvc,
		log:        log,
	}
}

// CreatePayment создает платеж и сразу проводит его через шлюз
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	body, err := req.HandleBody[domain.PaymentRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	payment, err := h.paymentSvc.Create(c.Request.Context(), *body)
	if err != nil {
		respondError(c, h.log, err, "Failed to create payment")
		return
	}

	payment, err = h.paymentSvc.Process(c.Request.Context(), payment)
	if err != nil {
		respondError(c, h.log, err, "Failed to process payment")
		return
	}

	h.log.Info("Created payment with ID: %s, status: %s", payment.ID, payment.Status)
	c.JSON(http.StatusCreated, payment)
}

// GetPayment возвращает платеж по ID
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentSvc.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "Failed to get payment")
		return
	}
	c.JSON(http.StatusOK, payment)
}

// ListPayments возвращает список платежей
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	payments, err := h.paymentSvc.FindAll(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "Failed to get payments")
		return
	}
	c.JSON(http.StatusOK, payments)
}

// ListUserPayments возвращает платежи пользователя
func (h *PaymentHandler) ListUserPayments(c *gin.Context) {
	payments, err := h.paymentSvc.FindByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, h.log, err, "Failed to get payments for user")
		return
	}
	c.JSON(http.StatusOK, payments)
}

// ListSubscriptionPayments возвращает платежи подписки
func (h *PaymentHandler) ListSubscriptionPayments(c *gin.Context) {
	payments, err := h.paymentSvc.FindBySubscription(c.Request.Context(), c.Param("subscriptionId"))
	if err != nil {
		respondError(c, h.log, err, "Failed to get payments for subscription")
		return
	}
	c.JSON(http.StatusOK, payments)
}

// RefundPayment возвращает платеж
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	body, err := req.HandleBody[domain.RefundRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	id := c.Param("id")
	payment, err := h.paymentSvc.Refund(c.Request.Context(), id, *body)
	if err != nil {
		respondError(c, h.log, err, "Failed to refund payment")
		return
	}

	h.log.Info("Refunded payment with ID: %s", id)
	c.JSON(http.StatusOK, payment)
}
