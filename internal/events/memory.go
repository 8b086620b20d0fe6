package events

import (
	"context"
	"sync"

	"github.com/samber/lo"
)

// RecordType тип записи MemoryBus
type RecordType string

const (
	RecordEvent        RecordType = "event"
	RecordNotification RecordType = "notification"
)

// Record запись, полученная MemoryBus, в порядке поступления
type Record struct {
	Type         RecordType
	Event        Event
	Notification Notification
}

// Name имя события или тип уведомления
func (r Record) Name() string {
	if r.Type == RecordEvent {
		return r.Event.Name
	}
	return string(r.Notification.Kind)
}

// MemoryBus хранит события и уведомления в памяти. Реализует Publisher и Notifier.
type MemoryBus struct {
	mu         sync.Mutex
	records    []Record
	publishErr error
	notifyErr  error
}

// NewMemoryBus создает пустую шину
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// FailPublish заставляет Publish возвращать err (nil отключает)
func (b *MemoryBus) FailPublish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishErr = err
}

// FailNotify заставляет Notify возвращать err (nil отключает)
func (b *MemoryBus) FailNotify(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifyErr = err
}

// Publish реализует Publisher
func (b *MemoryBus) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.records = append(b.records, Record{Type: RecordEvent, Event: event})
	return nil
}

// Notify реализует Notifier
func (b *MemoryBus) Notify(_ context.Context, notification Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.notifyErr != nil {
		return b.notifyErr
	}
	b.records = append(b.records, Record{Type: RecordNotification, Notification: notification})
	return nil
}

// Records копия всех записей
func (b *MemoryBus) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Record(nil), b.records...)
}

// Names имена всех записей в порядке поступления
func (b *MemoryBus) Names() []string {
	return lo.Map(b.Records(), func(r Record, _ int) string { return r.Name() })
}

// Events только доменные события
func (b *MemoryBus) Events() []Event {
	records := lo.Filter(b.Records(), func(r Record, _ int) bool { return r.Type == RecordEvent })
	return lo.Map(records, func(r Record, _ int) Event { return r.Event })
}

// EventNames имена доменных событий
func (b *MemoryBus) EventNames() []string {
	return lo.Map(b.Events(), func(e Event, _ int) string { return e.Name })
}

// Notifications только уведомления
func (b *MemoryBus) Notifications() []Notification {
	records := lo.Filter(b.Records(), func(r Record, _ int) bool { return r.Type == RecordNotification })
	return lo.Map(records, func(r Record, _ int) Notification { return r.Notification })
}

// Reset очищает записи
func (b *MemoryBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = nil
}
