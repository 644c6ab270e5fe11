package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики движка оформления заказа.
type CheckoutMetrics struct {
	// Счётчики переходов state machine
	transitions     *prometheus.CounterVec
	transitionFails *prometheus.CounterVec

	// Fulfillment
	plansBuilt   prometheus.Counter
	plansFailed  prometheus.Counter
	stockDepletd prometheus.Counter

	// Платежи
	authorizations prometheus.Counter
	captures       prometheus.Counter
	refunds        prometheus.Counter
	webhookReplays prometheus.Counter

	// Гистограмма времени перехода
	transitionDuration *prometheus.HistogramVec

	// События outbox/timeline
	outboxEvents   prometheus.Counter
	timelineEvents prometheus.Counter
}

// NewCheckoutMetrics создаёт метрики на default-регистраторе.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_transitions_total",
			Help: "Total number of order status transitions grouped by target status",
		}, []string{"to"}),
		transitionFails: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_transition_failures_total",
			Help: "Total number of rejected order status transitions grouped by target status",
		}, []string{"to"}),
		plansBuilt: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_fulfillment_plans_total",
			Help: "Total number of successful fulfillment plans",
		}),
		plansFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_fulfillment_plan_failures_total",
			Help: "Total number of failed fulfillment plans",
		}),
		stockDepletd: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_stock_depleted_total",
			Help: "Total number of stock items drained to zero availability",
		}),
		authorizations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_payment_authorizations_total",
			Help: "Total number of successful payment authorizations",
		}),
		captures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_payment_captures_total",
			Help: "Total number of successful payment captures",
		}),
		refunds: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_payment_refunds_total",
			Help: "Total number of payment refunds",
		}),
		webhookReplays: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_webhook_replays_total",
			Help: "Total number of duplicate gateway webhook deliveries dropped",
		}),
		transitionDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "checkout_transition_duration_seconds",
			Help:    "Duration of order status transitions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"to"}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_outbox_events_total",
			Help: "Total number of domain events enqueued to the outbox",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordTransition увеличивает счётчик успешных переходов.
func (m *CheckoutMetrics) RecordTransition(to string) {
	m.transitions.WithLabelValues(to).Inc()
}

// RecordTransitionFailure увеличивает счётчик отклонённых переходов.
func (m *CheckoutMetrics) RecordTransitionFailure(to string) {
	m.transitionFails.WithLabelValues(to).Inc()
}

// RecordTransitionDuration записывает длительность перехода.
func (m *CheckoutMetrics) RecordTransitionDuration(to string, duration time.Duration) {
	m.transitionDuration.WithLabelValues(to).Observe(duration.Seconds())
}

// RecordPlanBuilt увеличивает счётчик успешных планов.
func (m *CheckoutMetrics) RecordPlanBuilt() { m.plansBuilt.Inc() }

// RecordPlanFailed увеличивает счётчик неудачных планов.
func (m *CheckoutMetrics) RecordPlanFailed() { m.plansFailed.Inc() }

// RecordStockDepleted увеличивает счётчик исчерпанного стока.
func (m *CheckoutMetrics) RecordStockDepleted() { m.stockDepletd.Inc() }

// RecordAuthorization увеличивает счётчик авторизаций.
func (m *CheckoutMetrics) RecordAuthorization() { m.authorizations.Inc() }

// RecordCapture увеличивает счётчик списаний.
func (m *CheckoutMetrics) RecordCapture() { m.captures.Inc() }

// RecordRefund увеличивает счётчик возвратов.
func (m *CheckoutMetrics) RecordRefund() { m.refunds.Inc() }

// RecordWebhookReplay увеличивает счётчик отброшенных повторных событий.
func (m *CheckoutMetrics) RecordWebhookReplay() { m.webhookReplays.Inc() }

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() { m.outboxEvents.Inc() }

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *CheckoutMetrics) RecordTimelineEvent() { m.timelineEvents.Inc() }
