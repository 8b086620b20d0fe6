package metrics

import (
	"testing"
	"time"

	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentMetrics(t *testing.T) {
	m := New(logger.NewNop())
	pm := m.Payments.(*paymentMetrics)

	m.Payments.IncPaymentCreated()
	m.Payments.IncPaymentCreated()
	m.Payments.IncPaymentApproved()
	m.Payments.IncPaymentFailed()
	m.Payments.ObservePaymentAmount(49.99, "approved")

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.paymentsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.paymentsStatus.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.paymentsStatus.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.paymentsStatus.WithLabelValues("refunded")))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.paymentsAmount))
}

func TestSubscriptionMetrics(t *testing.T) {
	m := New(logger.NewNop())
	sm := m.Subscriptions.(*subscriptionMetrics)

	m.Subscriptions.IncTransition("pending")
	m.Subscriptions.IncRenewalSucceeded()
	m.Subscriptions.IncRenewalFailed()
	m.Subscriptions.IncRenewalFailed()
	m.Subscriptions.ObserveSweep(150*time.Millisecond, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(sm.transitions.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.renewals.WithLabelValues("renewed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sm.renewals.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(sm.sweepDue))
}

func TestRegistryGathers(t *testing.T) {
	m := New(logger.NewNop())
	m.Events.IncEventPublishFailed("payment.failed")
	m.Events.IncNotificationDropped("payment_failure")

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["billing_events_total"])
	assert.True(t, names["billing_notifications_total"])
	assert.True(t, names["go_goroutines"])
}
