package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
)

// Gateway внешний платежный шлюз: одна попытка списания на вызов.
// Возвращает ID транзакции или ошибку.
type Gateway interface {
	Settle(ctx context.Context, payment *domain.Payment) (string, error)
}

// Func позволяет использовать функцию как Gateway
type Func func(ctx context.Context, payment *domain.Payment) (string, error)

// Settle реализует Gateway
func (f Func) Settle(ctx context.Context, payment *domain.Payment) (string, error) {
	return f(ctx, payment)
}

type settleResult struct {
	txID string
	err  error
}

// SafeSettle вызывает шлюз с таймаутом и превращает панику или зависание в *domain.GatewayError.
// Если timeout <= 0, ограничение не накладывается.
func SafeSettle(ctx context.Context, gw Gateway, payment *domain.Payment, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan settleResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- settleResult{err: domain.NewGatewayError("adapter", fmt.Sprintf("panic during settlement: %v", r), nil)}
			}
		}()
		txID, err := gw.Settle(ctx, payment)
		done <- settleResult{txID: txID, err: err}
	}()

	select {
	case res := <-done:
		return res.txID, res.err
	case <-ctx.Done():
		return "", domain.NewGatewayError("adapter", "settlement timed out", ctx.Err())
	}
}
