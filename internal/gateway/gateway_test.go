package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxGateway_TransactionIDs(t *testing.T) {
	p := &domain.Payment{ID: "p1"}

	txID, err := NewSandboxGateway(ModeSandbox, logger.NewNop()).Settle(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(txID, "tx_"))
	assert.False(t, strings.HasPrefix(txID, "tx_live_"))

	liveID, err := NewSandboxGateway(ModeLive, logger.NewNop()).Settle(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(liveID, "tx_live_"))

	other, err := NewSandboxGateway(ModeSandbox, logger.NewNop()).Settle(context.Background(), p)
	require.NoError(t, err)
	assert.NotEqual(t, txID, other)
}

func TestSafeSettle_PassesThroughResult(t *testing.T) {
	ok := Func(func(context.Context, *domain.Payment) (string, error) { return "tx_ok", nil })
	txID, err := SafeSettle(context.Background(), ok, &domain.Payment{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "tx_ok", txID)

	declined := errors.New("card declined")
	bad := Func(func(context.Context, *domain.Payment) (string, error) { return "", declined })
	_, err = SafeSettle(context.Background(), bad, &domain.Payment{}, time.Second)
	assert.ErrorIs(t, err, declined)
}

func TestSafeSettle_RecoversPanic(t *testing.T) {
	boom := Func(func(context.Context, *domain.Payment) (string, error) { panic("nil card") })

	_, err := SafeSettle(context.Background(), boom, &domain.Payment{}, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.Contains(t, err.Error(), "nil card")
}

func TestSafeSettle_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := Func(func(context.Context, *domain.Payment) (string, error) {
		<-release
		return "late", nil
	})

	start := time.Now()
	_, err := SafeSettle(context.Background(), stuck, &domain.Payment{}, 20*time.Millisecond)
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
