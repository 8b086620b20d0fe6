package req

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/Dhoini/billing-service/pkg/res"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode декодирует JSON из io.ReadCloser в структуру типа T.
func Decode[T any](body io.ReadCloser) (T, error) {
	var payload T
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// IsValid валидирует структуру типа T.
func IsValid[T any](payload T) error {
	return validate.Struct(payload)
}

// HandleBody декодирует, валидирует и обрабатывает тело запроса.
// При ошибке ответ уже отправлен клиенту.
func HandleBody[T any](w http.ResponseWriter, r *http.Request, log *logger.Logger) (*T, error) {
	body, err := Decode[T](r.Body)
	if err != nil {
		log.Warnw("Failed to decode request body", "path", r.URL.Path, "error", err)
		res.JsonErrorResponse(w, res.ErrorResponse{
			Error:     "Invalid request format",
			ErrorCode: http.StatusBadRequest,
		}, http.StatusBadRequest, log)
		return nil, err
	}

	if err := IsValid(body); err != nil {
		log.Warnw("Request body validation failed", "path", r.URL.Path, "error", err)
		res.JsonErrorResponse(w, res.ErrorResponse{
			Error:     "Invalid request data",
			ErrorCode: http.StatusUnprocessableEntity,
			Details:   validationDetails(err),
		}, http.StatusUnprocessableEntity, log)
		return nil, err
	}
	return &body, nil
}

func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}
