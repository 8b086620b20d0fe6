package metrics

import (
	"time"

	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SubscriptionMetrics метрики жизненного цикла подписок и обхода продлений
type SubscriptionMetrics interface {
	IncTransition(status string)
	IncRenewalSucceeded()
	IncRenewalFailed()
	ObserveSweep(duration time.Duration, due int)
}

type subscriptionMetrics struct {
	log           *logger.Logger
	transitions   *prometheus.CounterVec
	renewals      *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweepDue      prometheus.Gauge
}

// NewSubscriptionMetrics создает метрики подписок
func NewSubscriptionMetrics(registry prometheus.Registerer, log *logger.Logger) SubscriptionMetrics {
	reg := promauto.With(registry)
	return &subscriptionMetrics{
		log: log,
		transitions: reg.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_transitions_total",
			Help:      "Subscription status transitions by target status",
		}, []string{"status"}),
		renewals: reg.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_renewals_total",
			Help:      "Renewal attempts made by the sweep",
		}, []string{"result"}),
		sweepDuration: reg.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "renewal_sweep_duration_seconds",
			Help:      "Duration of a renewal sweep",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		sweepDue: reg.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "renewal_sweep_due_subscriptions",
			Help:      "Number of subscriptions due in the last sweep",
		}),
	}
}

func (m *subscriptionMetrics) IncTransition(status string) {
	m.transitions.WithLabelValues(status).Inc()
}

func (m *subscriptionMetrics) IncRenewalSucceeded() {
	m.renewals.WithLabelValues("renewed").Inc()
}

func (m *subscriptionMetrics) IncRenewalFailed() {
	m.renewals.WithLabelValues("failed").Inc()
}

// ObserveSweep фиксирует длительность обхода и размер набора к продлению
func (m *subscriptionMetrics) ObserveSweep(duration time.Duration, due int) {
	m.sweepDuration.Observe(duration.Seconds())
	m.sweepDue.Set(float64(due))
}
