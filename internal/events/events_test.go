package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/internal/metrics"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMetrics() metrics.EventMetrics {
	return metrics.New(logger.NewNop()).Events
}

func TestDispatcher_FlushPreservesOrder(t *testing.T) {
	bus := NewMemoryBus()
	d := NewDispatcher(bus, bus, testMetrics(), logger.NewNop())

	now := time.Now()
	sub := &domain.Subscription{ID: "sub-1", SubscriberID: "user-1", Status: domain.SubscriptionStatusActive}
	outbox := NewOutbox().
		AddEvent(NewSubscriptionEvent(domain.EventSubscriptionCreated, sub, now)).
		AddNotification(NewNotification(domain.NotificationSubscriptionCreated, sub.SubscriberID, nil, now))

	d.Flush(context.Background(), outbox)

	assert.Equal(t, []string{domain.EventSubscriptionCreated, string(domain.NotificationSubscriptionCreated)}, bus.Names())
	assert.Equal(t, 0, outbox.Len())

	events := bus.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "sub-1", events[0].Key)
	payload, ok := events[0].Payload.(domain.SubscriptionEvent)
	require.True(t, ok)
	assert.Equal(t, domain.SubscriptionStatusActive, payload.Status)
}

type flakyPublisher struct {
	failures int32
	calls    atomic.Int32
	bus      *MemoryBus
}

func (p *flakyPublisher) Publish(ctx context.Context, e Event) error {
	if p.calls.Add(1) <= p.failures {
		return errors.New("broker unavailable")
	}
	return p.bus.Publish(ctx, e)
}

func TestDispatcher_RetriesPublish(t *testing.T) {
	bus := NewMemoryBus()
	pub := &flakyPublisher{failures: 2, bus: bus}
	d := NewDispatcher(pub, bus, testMetrics(), logger.NewNop(), WithPublishRetry(3, time.Millisecond))

	d.Flush(context.Background(), NewOutbox().AddEvent(Event{Name: domain.EventPaymentApproved, Key: "p1"}))

	assert.Equal(t, int32(3), pub.calls.Load())
	assert.Equal(t, []string{domain.EventPaymentApproved}, bus.EventNames())
}

func TestDispatcher_FailuresDoNotStopDelivery(t *testing.T) {
	bus := NewMemoryBus()
	bus.FailPublish(errors.New("broker down"))
	d := NewDispatcher(bus, bus, testMetrics(), logger.NewNop(), WithPublishRetry(1, time.Millisecond))

	d.Flush(context.Background(), NewOutbox().
		AddEvent(Event{Name: domain.EventPaymentFailed, Key: "p1"}).
		AddNotification(Notification{Kind: domain.NotificationPaymentFailure, SubscriberID: "user-1"}))

	assert.Empty(t, bus.Events())
	assert.Len(t, bus.Notifications(), 1)

	bus.FailPublish(nil)
	bus.FailNotify(errors.New("smtp down"))
	d.Flush(context.Background(), NewOutbox().
		AddEvent(Event{Name: domain.EventPaymentApproved, Key: "p2"}).
		AddNotification(Notification{Kind: domain.NotificationPaymentSuccess, SubscriberID: "user-1"}))

	assert.Equal(t, []string{domain.EventPaymentApproved}, bus.EventNames())
	assert.Len(t, bus.Notifications(), 1)
}

func TestDispatcher_FlushAfterCancel(t *testing.T) {
	bus := NewMemoryBus()
	d := NewDispatcher(bus, bus, testMetrics(), logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Flush(ctx, NewOutbox().AddEvent(Event{Name: domain.EventSubscriptionRenewed, Key: "s1"}))

	assert.Equal(t, []string{domain.EventSubscriptionRenewed}, bus.EventNames())
}

func TestAsyncNotifier_DeliversAndDrains(t *testing.T) {
	bus := NewMemoryBus()
	n := NewAsyncNotifier(bus, 16, testMetrics(), logger.NewNop())

	for i := 0; i < 5; i++ {
		require.NoError(t, n.Notify(context.Background(), Notification{Kind: domain.NotificationPaymentSuccess, SubscriberID: "user-1"}))
	}
	require.NoError(t, n.Close(context.Background()))

	assert.Len(t, bus.Notifications(), 5)
	assert.ErrorIs(t, n.Notify(context.Background(), Notification{}), ErrNotifierClosed)
	assert.NoError(t, n.Close(context.Background()))
}

type blockingNotifier struct {
	release chan struct{}
	bus     *MemoryBus
}

func (b *blockingNotifier) Notify(ctx context.Context, n Notification) error {
	<-b.release
	return b.bus.Notify(ctx, n)
}

func TestAsyncNotifier_DropsWhenFull(t *testing.T) {
	bus := NewMemoryBus()
	slow := &blockingNotifier{release: make(chan struct{}), bus: bus}
	n := NewAsyncNotifier(slow, 1, testMetrics(), logger.NewNop())

	// Воркер может забрать первое уведомление, буфер вмещает еще одно
	for i := 0; i < 10; i++ {
		require.NoError(t, n.Notify(context.Background(), Notification{Kind: domain.NotificationPaymentFailure}))
	}
	close(slow.release)
	require.NoError(t, n.Close(context.Background()))

	delivered := len(bus.Notifications())
	assert.GreaterOrEqual(t, delivered, 1)
	assert.LessOrEqual(t, delivered, 2)
}

func TestAsyncNotifier_CloseHonoursContext(t *testing.T) {
	slow := &blockingNotifier{release: make(chan struct{}), bus: NewMemoryBus()}
	defer close(slow.release)
	n := NewAsyncNotifier(slow, 4, testMetrics(), logger.NewNop())
	require.NoError(t, n.Notify(context.Background(), Notification{Kind: domain.NotificationSubscriptionExpired}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, n.Close(ctx), context.DeadlineExceeded)
}
