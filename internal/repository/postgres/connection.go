package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig настройки пула соединений
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// ConnectTimeout общее время на попытки подключения при старте
	ConnectTimeout time.Duration
}

// DefaultPoolConfig значения по умолчанию
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  30 * time.Second,
	}
}

// NewConnection создает новое подключение к PostgreSQL.
// Пока база поднимается, Ping повторяется с экспоненциальной задержкой.
func NewConnection(ctx context.Context, connString string, cfg PoolConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	log.Info("Connecting to PostgreSQL")

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = cfg.ConnectTimeout

	attempt := 0
	ping := func() error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			log.Warnw("PostgreSQL is not reachable yet", "attempt", attempt, "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(policy, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Info("Successfully connected to PostgreSQL")
	return pool, nil
}
