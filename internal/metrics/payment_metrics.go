package metrics

import (
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics интерфейс для метрик платежей
type PaymentMetrics interface {
	IncPaymentCreated()
	IncPaymentApproved()
	IncPaymentFailed()
	IncPaymentRefunded()
	ObservePaymentAmount(amount float64, status string)
	ObserveGatewayDuration(seconds float64, outcome string)
}

type paymentMetrics struct {
	log             *logger.Logger
	paymentsCreated prometheus.Counter
	paymentsStatus  *prometheus.CounterVec
	paymentsAmount  *prometheus.HistogramVec
	gatewayDuration *prometheus.HistogramVec
}

// NewPaymentMetrics создает новые метрики платежей
func NewPaymentMetrics(registry prometheus.Registerer, log *logger.Logger) PaymentMetrics {
	paymentsCreated := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_created_total",
			Help:      "The total number of created payments",
		},
	)

	paymentsStatus := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_status_total",
			Help:      "The total number of payment status transitions",
		},
		[]string{"status"},
	)

	paymentsAmount := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payments_amount",
			Help:      "Payment amounts distribution",
			Buckets:   prometheus.ExponentialBuckets(10, 10, 5), // 10, 100, 1000, 10000, 100000
		},
		[]string{"status"},
	)

	gatewayDuration := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_settle_duration_seconds",
			Help:      "Time spent waiting for the payment gateway",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	return &paymentMetrics{
		log:             log,
		paymentsCreated: paymentsCreated,
		paymentsStatus:  paymentsStatus,
		paymentsAmount:  paymentsAmount,
		gatewayDuration: gatewayDuration,
	}
}

// IncPaymentCreated увеличивает счетчик созданных платежей
func (m *paymentMetrics) IncPaymentCreated() {
	m.paymentsCreated.Inc()
}

// IncPaymentApproved увеличивает счетчик одобренных платежей
func (m *paymentMetrics) IncPaymentApproved() {
	m.paymentsStatus.WithLabelValues("approved").Inc()
}

// IncPaymentFailed увеличивает счетчик неудачных платежей
func (m *paymentMetrics) IncPaymentFailed() {
	m.paymentsStatus.WithLabelValues("failed").Inc()
}

// IncPaymentRefunded увеличивает счетчик возвращенных платежей
func (m *paymentMetrics) IncPaymentRefunded() {
	m.paymentsStatus.WithLabelValues("refunded").Inc()
}

// ObservePaymentAmount записывает сумму платежа
func (m *paymentMetrics) ObservePaymentAmount(amount float64, status string) {
	m.paymentsAmount.WithLabelValues(status).Observe(amount)
}

// ObserveGatewayDuration записывает длительность вызова шлюза
func (m *paymentMetrics) ObserveGatewayDuration(seconds float64, outcome string) {
	m.gatewayDuration.WithLabelValues(outcome).Observe(seconds)
}
