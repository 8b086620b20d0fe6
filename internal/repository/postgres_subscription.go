package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/internal/repository/postgres"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriptionColumns = `id, subscriber_id, plan_id, status, start_date, end_date,
	failed_payment_attempts, canceled_at, created_at, updated_at`

// PostgresSubscriptionRepository реализует SubscriptionRepository для PostgreSQL
type PostgresSubscriptionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый экземпляр репозитория для PostgreSQL
func NewPostgresSubscriptionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		db:  db,
		log: log,
	}
}

// Create сохраняет новую подписку. Уникальность открытой подписки обеспечивает частичный индекс.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		sub.ID,
		sub.SubscriberID,
		sub.PlanID,
		string(sub.Status),
		sub.StartDate,
		sub.EndDate,
		sub.FailedPaymentAttempts,
		sub.CanceledAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		if mapped := mapSubscriptionWriteError(err); mapped != nil {
			r.log.Warnw("Subscription insert rejected", "subscriptionID", sub.ID, "subscriberID", sub.SubscriberID, "error", err)
			return mapped
		}
		r.log.Errorw("Failed to create subscription in DB", "error", err, "subscriptionID", sub.ID)
		return fmt.Errorf("repository: failed to create subscription: %w", err)
	}

	r.log.Debugw("Successfully created subscription in DB", "subscriptionID", sub.ID, "subscriberID", sub.SubscriberID)
	return nil
}

// Update сохраняет изменяемые поля подписки
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE subscriptions SET
			status = $1,
			end_date = $2,
			failed_payment_attempts = $3,
			canceled_at = $4,
			updated_at = $5
		WHERE id = $6`

	result, err := r.db.Exec(ctx, query,
		string(sub.Status),
		sub.EndDate,
		sub.FailedPaymentAttempts,
		sub.CanceledAt,
		sub.UpdatedAt,
		sub.ID,
	)
	if err != nil {
		if mapped := mapSubscriptionWriteError(err); mapped != nil {
			return mapped
		}
		r.log.Errorw("Failed to update subscription in DB", "error", err, "subscriptionID", sub.ID)
		return fmt.Errorf("repository: failed to update subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("subscription", sub.ID)
	}
	return nil
}

// GetByID возвращает подписку по ID
func (r *PostgresSubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("subscription", id)
		}
		r.log.Errorw("Failed to get subscription by ID from DB", "error", err, "subscriptionID", id)
		return nil, fmt.Errorf("repository: failed to get subscription: %w", err)
	}
	return sub, nil
}

// GetAll возвращает все подписки
func (r *PostgresSubscriptionRepository) GetAll(ctx context.Context) ([]*domain.Subscription, error) {
	return r.query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY created_at DESC, id`)
}

// GetBySubscriberID возвращает все подписки пользователя
func (r *PostgresSubscriptionRepository) GetBySubscriberID(ctx context.Context, subscriberID string) ([]*domain.Subscription, error) {
	return r.query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE subscriber_id = $1 ORDER BY created_at DESC, id`, subscriberID)
}

// GetOpenBySubscriberID возвращает активную или ожидающую подписку пользователя
func (r *PostgresSubscriptionRepository) GetOpenBySubscriberID(ctx context.Context, subscriberID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE subscriber_id = $1 AND status IN ('active', 'pending')`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, subscriberID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("open subscription for subscriber", subscriberID)
		}
		return nil, fmt.Errorf("repository: failed to get open subscription: %w", err)
	}
	return sub, nil
}

// GetByStatus возвращает подписки в указанном статусе
func (r *PostgresSubscriptionRepository) GetByStatus(ctx context.Context, status domain.SubscriptionStatus) ([]*domain.Subscription, error) {
	return r.query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = $1 ORDER BY created_at DESC, id`, string(status))
}

// GetDueForRenewal возвращает подписки с истекшим периодом
func (r *PostgresSubscriptionRepository) GetDueForRenewal(ctx context.Context, now time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status IN ('active', 'pending') AND end_date <= $1 ORDER BY end_date, id`, now)
}

func (r *PostgresSubscriptionRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Errorw("Failed to query subscriptions", "error", err)
		return nil, fmt.Errorf("repository: failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]*domain.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating subscription rows: %w", err)
	}
	return subs, nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	var status string
	err := row.Scan(
		&sub.ID,
		&sub.SubscriberID,
		&sub.PlanID,
		&status,
		&sub.StartDate,
		&sub.EndDate,
		&sub.FailedPaymentAttempts,
		&sub.CanceledAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Status = domain.SubscriptionStatus(status)
	return &sub, nil
}

func mapSubscriptionWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == postgres.UniqueViolation {
		if pgErr.ConstraintName == postgres.OpenSubscriptionIndex {
			return domain.ErrDuplicateActiveSubscription
		}
		return ErrDuplicate
	}
	return nil
}
