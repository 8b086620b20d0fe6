package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresPlanRepository читает планы из таблицы plans
type PostgresPlanRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresPlanRepository создает репозиторий планов для PostgreSQL
func NewPostgresPlanRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresPlanRepository {
	return &PostgresPlanRepository{db: db, log: log}
}

// GetByID возвращает план по ID
func (r *PostgresPlanRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	var plan domain.Plan
	var price, duration, status string

	err := r.db.QueryRow(ctx,
		`SELECT id, name, price::text, duration, status FROM plans WHERE id = $1`, id,
	).Scan(&plan.ID, &plan.Name, &price, &duration, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("plan", id)
		}
		r.log.Errorw("Failed to get plan from DB", "error", err, "planID", id)
		return nil, fmt.Errorf("repository: failed to get plan: %w", err)
	}

	plan.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("%w: plan price %q: %v", ErrInvalidData, price, err)
	}
	plan.Duration = domain.PlanDuration(duration)
	plan.Status = domain.PlanStatus(status)
	return &plan, nil
}

// PostgresSubscriberRepository читает подписчиков из таблицы subscribers
type PostgresSubscriberRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriberRepository создает репозиторий подписчиков для PostgreSQL
func NewPostgresSubscriberRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriberRepository {
	return &PostgresSubscriberRepository{db: db, log: log}
}

// GetByID возвращает подписчика по ID
func (r *PostgresSubscriberRepository) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	var s domain.Subscriber
	err := r.db.QueryRow(ctx,
		`SELECT id, email, name, phone FROM subscribers WHERE id = $1`, id,
	).Scan(&s.ID, &s.Email, &s.Name, &s.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("subscriber", id)
		}
		r.log.Errorw("Failed to get subscriber from DB", "error", err, "subscriberID", id)
		return nil, fmt.Errorf("repository: failed to get subscriber: %w", err)
	}
	return &s, nil
}
