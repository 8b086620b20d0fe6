package service

import (
	"time"
)

const defaultGatewayTimeout = 30 * time.Second

type options struct {
	now            func() time.Time
	gatewayTimeout time.Duration
}

// Option настройка сервисов
type Option func(*options)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithGatewayTimeout ограничивает время одного вызова платежного шлюза
func WithGatewayTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.gatewayTimeout = timeout
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:            func() time.Time { return time.Now().UTC() },
		gatewayTimeout: defaultGatewayTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
