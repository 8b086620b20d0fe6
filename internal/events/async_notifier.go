package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Dhoini/billing-service/internal/metrics"
	"github.com/Dhoini/billing-service/pkg/logger"
)

// ErrNotifierClosed уведомление отправлено после Close
var ErrNotifierClosed = errors.New("notifier is closed")

const defaultDeliveryTimeout = 10 * time.Second

// AsyncNotifier доставляет уведомления в фоне через буферизованный канал.
// При переполненном буфере уведомление отбрасывается с предупреждением.
type AsyncNotifier struct {
	next    Notifier
	queue   chan Notification
	metrics metrics.EventMetrics
	log     *logger.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncNotifier запускает фоновую доставку в next
func NewAsyncNotifier(next Notifier, buffer int, m metrics.EventMetrics, log *logger.Logger) *AsyncNotifier {
	if buffer <= 0 {
		buffer = 1
	}
	n := &AsyncNotifier{
		next:    next,
		queue:   make(chan Notification, buffer),
		metrics: m,
		log:     log,
		timeout: defaultDeliveryTimeout,
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify ставит уведомление в очередь и не ждет доставки
func (n *AsyncNotifier) Notify(_ context.Context, notification Notification) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrNotifierClosed
	}

	select {
	case n.queue <- notification:
		return nil
	default:
		n.metrics.IncNotificationDropped(string(notification.Kind))
		n.log.Warnw("Notification queue is full, dropping notification",
			"kind", notification.Kind, "subscriberID", notification.SubscriberID)
		return nil
	}
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for notification := range n.queue {
		n.deliver(notification)
	}
}

func (n *AsyncNotifier) deliver(notification Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.next.Notify(ctx, notification); err != nil {
		n.metrics.IncNotificationFailed(string(notification.Kind))
		n.log.Warnw("Notification delivery failed", "kind", notification.Kind, "subscriberID", notification.SubscriberID, "error", err)
		return
	}
	n.metrics.IncNotificationSent(string(notification.Kind))
}

// Close прекращает прием уведомлений и дожидается доставки очереди либо отмены ctx
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		n.log.Info("Notification queue drained")
		return nil
	case <-ctx.Done():
		n.log.Warnw("Notification queue was not drained before shutdown", "pending", len(n.queue))
		return ctx.Err()
	}
}
