package postgres

import (
	"context"
	"fmt"

	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenSubscriptionIndex имя частичного уникального индекса:
// не более одной активной или ожидающей подписки на подписчика.
const OpenSubscriptionIndex = "subscriptions_one_open_per_subscriber"

// UniqueViolation код ошибки PostgreSQL для нарушения уникальности
const UniqueViolation = "23505"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS subscribers (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL,
		name       TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS plans (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		price      NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
		duration   TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'active'
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id                      TEXT PRIMARY KEY,
		subscriber_id           TEXT NOT NULL,
		plan_id                 TEXT NOT NULL,
		status                  TEXT NOT NULL,
		start_date              TIMESTAMPTZ NOT NULL,
		end_date                TIMESTAMPTZ NOT NULL,
		failed_payment_attempts INTEGER NOT NULL DEFAULT 0 CHECK (failed_payment_attempts >= 0),
		canceled_at             TIMESTAMPTZ,
		created_at              TIMESTAMPTZ NOT NULL,
		updated_at              TIMESTAMPTZ NOT NULL,
		CHECK (end_date >= start_date)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + OpenSubscriptionIndex + `
		ON subscriptions (subscriber_id) WHERE status IN ('active', 'pending')`,
	`CREATE INDEX IF NOT EXISTS subscriptions_due_idx ON subscriptions (end_date) WHERE status IN ('active', 'pending')`,
	`CREATE TABLE IF NOT EXISTS payments (
		id              TEXT PRIMARY KEY,
		subscriber_id   TEXT NOT NULL,
		subscription_id TEXT REFERENCES subscriptions (id),
		amount          NUMERIC(12, 2) NOT NULL CHECK (amount >= 0),
		description     TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL,
		transaction_id  TEXT NOT NULL DEFAULT '',
		failure_reason  TEXT NOT NULL DEFAULT '',
		refunded_at     TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS payments_subscriber_idx ON payments (subscriber_id)`,
	`CREATE INDEX IF NOT EXISTS payments_subscription_idx ON payments (subscription_id)`,
}

// Migrate создает таблицы и индексы, если их нет
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i, err)
		}
	}
	log.Infow("Database schema is up to date", "statements", len(schema))
	return nil
}
