package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/Dhoini/billing-service/pkg/res"
	"github.com/gin-gonic/gin"
)

// statusFor сопоставляет доменную ошибку HTTP статусу
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrDuplicateActiveSubscription):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPlanInactive),
		errors.Is(err, domain.ErrRefundWindowExpired),
		errors.Is(err, domain.ErrPaymentDeclined):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError отправляет ответ для ошибки сервиса. Внутренние ошибки не раскрываются клиенту.
func respondError(c *gin.Context, log *logger.Logger, err error, fallback string) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("%s: %v", fallback, err)
		message = fallback
	}
	res.JsonErrorResponse(c.Writer, res.ErrorResponse{
		Error:     message,
		ErrorCode: status,
	}, status, log)
	c.Abort()
}
