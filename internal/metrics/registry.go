package metrics

import (
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "billing"

// Metrics набор метрик сервиса поверх одного реестра
type Metrics struct {
	Registry      *prometheus.Registry
	Payments      PaymentMetrics
	Subscriptions SubscriptionMetrics
	Events        EventMetrics
}

// New создает реестр с метриками рантайма Go и процесса и регистрирует в нем метрики сервиса
func New(log *logger.Logger) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	log.Debug("Prometheus registry initialized")
	return &Metrics{
		Registry:      registry,
		Payments:      NewPaymentMetrics(registry, log),
		Subscriptions: NewSubscriptionMetrics(registry, log),
		Events:        NewEventMetrics(registry, log),
	}
}
