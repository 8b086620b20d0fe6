package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/google/uuid"
)

// Mode режим работы встроенного шлюза
type Mode string

const (
	ModeSandbox Mode = "sandbox"
	ModeLive    Mode = "live"
)

// SandboxGateway одобряет любой платеж и выдает синтетический ID транзакции.
// В режиме live ID получает префикс tx_live_.
type SandboxGateway struct {
	mode Mode
	now  func() time.Time
	log  *logger.Logger
}

// NewSandboxGateway создает встроенный шлюз
func NewSandboxGateway(mode Mode, log *logger.Logger) *SandboxGateway {
	if mode != ModeLive {
		mode = ModeSandbox
	}
	return &SandboxGateway{mode: mode, now: time.Now, log: log}
}

// Settle реализует Gateway
func (g *SandboxGateway) Settle(ctx context.Context, payment *domain.Payment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.NewGatewayError(string(g.mode), "context done before settlement", err)
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	prefix := "tx"
	if g.mode == ModeLive {
		prefix = "tx_live"
	}
	txID := fmt.Sprintf("%s_%d_%s", prefix, g.now().UnixMilli(), suffix)

	g.log.Debugw("Payment settled by built-in gateway", "paymentID", payment.ID, "mode", g.mode, "transactionID", txID)
	return txID, nil
}
