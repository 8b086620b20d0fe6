package repository

import (
	"errors"

	"github.com/Dhoini/billing-service/internal/domain"
)

var (
	// ErrNotFound запись не найдена (совпадает с доменной ошибкой, чтобы errors.Is работал на всех слоях)
	ErrNotFound = domain.ErrNotFound

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidData неверные данные
	ErrInvalidData = errors.New("invalid data")
)
