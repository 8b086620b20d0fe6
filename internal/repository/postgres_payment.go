package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/internal/repository/postgres"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// amount читается как text, чтобы не терять точность при переводе в decimal
const paymentColumns = `id, subscriber_id, subscription_id, amount::text, description, status,
	transaction_id, failure_reason, refunded_at, created_at, updated_at`

// PostgresPaymentRepository реализует PaymentRepository для PostgreSQL
type PostgresPaymentRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresPaymentRepository создает новый репозиторий платежей для PostgreSQL
func NewPostgresPaymentRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db:  db,
		log: log,
	}
}

// Create сохраняет новый платеж
func (r *PostgresPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (id, subscriber_id, subscription_id, amount, description, status,
			transaction_id, failure_reason, refunded_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.SubscriberID,
		p.SubscriptionID,
		p.Amount.String(),
		p.Description,
		string(p.Status),
		p.TransactionID,
		p.FailureReason,
		p.RefundedAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case postgres.UniqueViolation:
				return ErrDuplicate
			case "23503":
				return domain.NewNotFoundError("subscription", derefString(p.SubscriptionID))
			}
		}
		r.log.Errorw("Failed to create payment in DB", "error", err, "paymentID", p.ID)
		return fmt.Errorf("repository: failed to create payment: %w", err)
	}

	r.log.Debugw("Successfully created payment in DB", "paymentID", p.ID)
	return nil
}

// Update сохраняет статус платежа и связанные с ним поля
func (r *PostgresPaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	query := `
		UPDATE payments SET
			status = $1,
			transaction_id = $2,
			failure_reason = $3,
			refunded_at = $4,
			updated_at = $5
		WHERE id = $6`

	result, err := r.db.Exec(ctx, query,
		string(p.Status),
		p.TransactionID,
		p.FailureReason,
		p.RefundedAt,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		r.log.Errorw("Failed to update payment in DB", "error", err, "paymentID", p.ID)
		return fmt.Errorf("repository: failed to update payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("payment", p.ID)
	}
	return nil
}

// GetByID возвращает платеж по ID
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("payment", id)
		}
		r.log.Errorw("Failed to get payment by ID from DB", "error", err, "paymentID", id)
		return nil, fmt.Errorf("repository: failed to get payment: %w", err)
	}
	return p, nil
}

// GetAll возвращает все платежи
func (r *PostgresPaymentRepository) GetAll(ctx context.Context) ([]*domain.Payment, error) {
	return r.query(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC, id`)
}

// GetBySubscriberID возвращает платежи пользователя
func (r *PostgresPaymentRepository) GetBySubscriberID(ctx context.Context, subscriberID string) ([]*domain.Payment, error) {
	return r.query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE subscriber_id = $1 ORDER BY created_at DESC, id`, subscriberID)
}

// GetBySubscriptionID возвращает платежи подписки
func (r *PostgresPaymentRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) ([]*domain.Payment, error) {
	return r.query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE subscription_id = $1 ORDER BY created_at DESC, id`, subscriptionID)
}

func (r *PostgresPaymentRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Payment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Errorw("Failed to query payments", "error", err)
		return nil, fmt.Errorf("repository: failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating payment rows: %w", err)
	}
	return payments, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var amount, status string
	err := row.Scan(
		&p.ID,
		&p.SubscriberID,
		&p.SubscriptionID,
		&amount,
		&p.Description,
		&status,
		&p.TransactionID,
		&p.FailureReason,
		&p.RefundedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", ErrInvalidData, amount, err)
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
