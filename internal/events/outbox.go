package events

// Outbox копит события и уведомления одного перехода до фиксации в хранилище.
// Порядок добавления сохраняется при отправке.
type Outbox struct {
	items []outboxItem
}

type outboxItem struct {
	event        *Event
	notification *Notification
}

// NewOutbox создает пустой outbox
func NewOutbox() *Outbox {
	return &Outbox{}
}

// AddEvent добавляет доменное событие
func (o *Outbox) AddEvent(e Event) *Outbox {
	o.items = append(o.items, outboxItem{event: &e})
	return o
}

// AddNotification добавляет уведомление
func (o *Outbox) AddNotification(n Notification) *Outbox {
	o.items = append(o.items, outboxItem{notification: &n})
	return o
}

// Len количество накопленных записей
func (o *Outbox) Len() int {
	return len(o.items)
}

// Reset очищает outbox
func (o *Outbox) Reset() {
	o.items = nil
}
