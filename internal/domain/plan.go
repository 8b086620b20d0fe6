package domain

import (
	"github.com/shopspring/decimal"
)

// PlanDuration длительность тарифного плана
type PlanDuration string

const (
	PlanDurationMonthly    PlanDuration = "monthly"
	PlanDurationQuarterly  PlanDuration = "quarterly"
	PlanDurationSemiannual PlanDuration = "semiannual"
	PlanDurationAnnual     PlanDuration = "annual"
)

// Days количество дней в периоде; 0 для неизвестной длительности
func (d PlanDuration) Days() int {
	switch d {
	case PlanDurationMonthly:
		return 30
	case PlanDurationQuarterly:
		return 90
	case PlanDurationSemiannual:
		return 180
	case PlanDurationAnnual:
		return 365
	default:
		return 0
	}
}

// PlanStatus статус плана
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "active"
	PlanStatusInactive PlanStatus = "inactive"
)

// Plan позиция каталога: цена и длина расчетного периода.
// Каталогом управляет внешний сервис, здесь план только читается.
type Plan struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Duration PlanDuration    `json:"duration"`
	Status   PlanStatus      `json:"status"`
}

// DurationDays длина периода в днях
func (p Plan) DurationDays() int {
	return p.Duration.Days()
}

// IsActive принимает ли план новые подписки
func (p Plan) IsActive() bool {
	return p.Status == PlanStatusActive
}

// Subscriber представляет собой подписчика (учетные записи ведет внешний сервис)
type Subscriber struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}
