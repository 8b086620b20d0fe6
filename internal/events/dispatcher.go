package events

import (
	"context"
	"time"

	"github.com/Dhoini/billing-service/internal/metrics"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/cenkalti/backoff/v4"
)

const (
	defaultPublishRetries  = 3
	defaultPublishInterval = 200 * time.Millisecond
)

// Dispatcher отправляет содержимое outbox после фиксации перехода.
// Ошибки доставки не возвращаются вызывающему: они логируются и считаются в метриках.
type Dispatcher struct {
	publisher     Publisher
	notifier      Notifier
	metrics       metrics.EventMetrics
	log           *logger.Logger
	retries       uint64
	retryInterval time.Duration
}

// Option настройка Dispatcher
type Option func(*Dispatcher)

// WithPublishRetry задает число повторов публикации и начальный интервал между ними
func WithPublishRetry(retries uint64, interval time.Duration) Option {
	return func(d *Dispatcher) {
		d.retries = retries
		d.retryInterval = interval
	}
}

// NewDispatcher создает диспетчер событий
func NewDispatcher(publisher Publisher, notifier Notifier, m metrics.EventMetrics, log *logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		publisher:     publisher,
		notifier:      notifier,
		metrics:       m,
		log:           log,
		retries:       defaultPublishRetries,
		retryInterval: defaultPublishInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Flush отправляет записи outbox в порядке добавления и очищает его
func (d *Dispatcher) Flush(ctx context.Context, outbox *Outbox) {
	if outbox == nil || outbox.Len() == 0 {
		return
	}
	// Переход уже зафиксирован, отмена запроса не должна прерывать доставку
	ctx = context.WithoutCancel(ctx)

	for _, item := range outbox.items {
		switch {
		case item.event != nil:
			d.publish(ctx, *item.event)
		case item.notification != nil:
			d.notify(ctx, *item.notification)
		}
	}
	outbox.Reset()
}

func (d *Dispatcher) publish(ctx context.Context, event Event) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, d.retries), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := d.publisher.Publish(ctx, event); err != nil {
			d.log.Debugw("Event publish attempt failed", "event", event.Name, "key", event.Key, "attempt", attempt, "error", err)
			return err
		}
		return nil
	}, policy)
	if err != nil {
		d.metrics.IncEventPublishFailed(event.Name)
		d.log.Errorw("Failed to publish domain event", "event", event.Name, "key", event.Key, "attempts", attempt, "error", err)
		return
	}

	d.metrics.IncEventPublished(event.Name)
	d.log.Debugw("Domain event published", "event", event.Name, "key", event.Key)
}

func (d *Dispatcher) notify(ctx context.Context, n Notification) {
	if err := d.notifier.Notify(ctx, n); err != nil {
		d.metrics.IncNotificationFailed(string(n.Kind))
		d.log.Warnw("Failed to notify subscriber", "kind", n.Kind, "subscriberID", n.SubscriberID, "error", err)
	}
}

