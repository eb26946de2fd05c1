package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SagaMetrics содержит метрики хореографируемой саги заказа.
type SagaMetrics struct {
	// Счётчики жизненного цикла заказа
	ordersCreated   prometheus.Counter
	ordersCompleted prometheus.Counter
	ordersCancelled prometheus.Counter

	// Счётчики шагов саги
	reservationsReserved  prometheus.Counter
	reservationsFailed    prometheus.Counter
	reservationsReleased  prometheus.Counter
	reservationsConfirmed prometheus.Counter
	paymentsSucceeded     prometheus.Counter
	paymentsFailed        prometheus.Counter

	// Счётчики событийного слоя
	eventsPublished *prometheus.CounterVec
	eventsConsumed  *prometheus.CounterVec
	duplicateEvents prometheus.Counter

	// Гистограмма обработки события шагом саги
	handlerDuration *prometheus.HistogramVec
}

// NewSagaMetrics создаёт новый экземпляр метрик саги.
func NewSagaMetrics() *SagaMetrics {
	return newSagaMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newSagaMetricsWithRegisterer(registerer prometheus.Registerer) *SagaMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SagaMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sagashop_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sagashop_orders_completed_total",
			Help: "Total number of orders completed successfully",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sagashop_orders_cancelled_total",
			Help: "Total number of orders cancelled by compensation or timeout",
		}),
		reservationsReserved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sagashop_reservations_reserved_total",
			Help: "Total number of successful stock reservations",
		}),
		reservationsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sagashop_reservations_failed_total",
			Help: "Total number of rejected stock reservations",
		}),
		reservationsReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sagashop_reservations_released_total",
			Help: "Total number of released (compensated) reservations",
		}),
		reservationsConfirmed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sagashop_reservations_confirmed_total",
			Help: "Total number of confirmed reservations",
		}),
		paymentsSucceeded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sagashop_payments_succeeded_total",
			Help: "Total number of successful payments",
		}),
		paymentsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sagashop_payments_failed_total",
			Help: "Total number of failed payments",
		}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sagashop_events_published_total",
			Help: "Total number of saga events published, by event type",
		}, []string{"event_type"}),
		eventsConsumed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sagashop_events_consumed_total",
			Help: "Total number of saga events consumed, by event type",
		}, []string{"event_type"}),
		duplicateEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sagashop_duplicate_events_total",
			Help: "Total number of redelivered events skipped by the idempotency ledger",
		}),
		handlerDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "sagashop_event_handler_duration_seconds",
			Help:    "Duration of saga event handlers in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"event_type"}),
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

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *SagaMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderCompleted увеличивает счётчик завершённых заказов.
func (m *SagaMetrics) RecordOrderCompleted() {
	m.ordersCompleted.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *SagaMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordReservationReserved увеличивает счётчик успешных резервов.
func (m *SagaMetrics) RecordReservationReserved() {
	m.reservationsReserved.Inc()
}

// RecordReservationFailed увеличивает счётчик отклонённых резервов.
func (m *SagaMetrics) RecordReservationFailed() {
	m.reservationsFailed.Inc()
}

// RecordReservationReleased увеличивает счётчик снятых резервов.
func (m *SagaMetrics) RecordReservationReleased() {
	m.reservationsReleased.Inc()
}

// RecordReservationConfirmed увеличивает счётчик подтверждённых резервов.
func (m *SagaMetrics) RecordReservationConfirmed() {
	m.reservationsConfirmed.Inc()
}

// RecordPaymentSucceeded увеличивает счётчик успешных платежей.
func (m *SagaMetrics) RecordPaymentSucceeded() {
	m.paymentsSucceeded.Inc()
}

// RecordPaymentFailed увеличивает счётчик отклонённых платежей.
func (m *SagaMetrics) RecordPaymentFailed() {
	m.paymentsFailed.Inc()
}

// RecordEventPublished увеличивает счётчик опубликованных событий.
func (m *SagaMetrics) RecordEventPublished(eventType string) {
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventConsumed увеличивает счётчик потреблённых событий.
func (m *SagaMetrics) RecordEventConsumed(eventType string) {
	m.eventsConsumed.WithLabelValues(eventType).Inc()
}

// RecordDuplicateEvent увеличивает счётчик отброшенных дубликатов.
func (m *SagaMetrics) RecordDuplicateEvent() {
	m.duplicateEvents.Inc()
}

// RecordHandlerDuration записывает время обработки события.
func (m *SagaMetrics) RecordHandlerDuration(eventType string, duration time.Duration) {
	m.handlerDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}
