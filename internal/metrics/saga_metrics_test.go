package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSagaMetricsCounters(t *testing.T) {
	m := newSagaMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordOrderCreated()
	m.RecordOrderCreated()
	m.RecordOrderCompleted()
	m.RecordOrderCancelled()
	m.RecordPaymentSucceeded()
	m.RecordPaymentFailed()
	m.RecordReservationReserved()
	m.RecordReservationReleased()

	require.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersCompleted))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersCancelled))
	require.Equal(t, 1.0, testutil.ToFloat64(m.paymentsSucceeded))
	require.Equal(t, 1.0, testutil.ToFloat64(m.paymentsFailed))
	require.Equal(t, 1.0, testutil.ToFloat64(m.reservationsReserved))
	require.Equal(t, 1.0, testutil.ToFloat64(m.reservationsReleased))
}

func TestSagaMetricsEventVectors(t *testing.T) {
	m := newSagaMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordEventPublished("ORDER_CREATED")
	m.RecordEventPublished("ORDER_CREATED")
	m.RecordEventConsumed("PAYMENT_SUCCESS")
	m.RecordDuplicateEvent()
	m.RecordHandlerDuration("PAYMENT_SUCCESS", 10*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("ORDER_CREATED")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("PAYMENT_SUCCESS")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.eventsConsumed.WithLabelValues("PAYMENT_SUCCESS")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.duplicateEvents))
}

func TestSagaMetricsReRegisterReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newSagaMetricsWithRegisterer(registry)
	second := newSagaMetricsWithRegisterer(registry)

	first.RecordOrderCreated()
	second.RecordOrderCreated()

	// Повторная регистрация возвращает существующие коллекторы, счёт общий.
	require.Equal(t, 2.0, testutil.ToFloat64(first.ordersCreated))
	require.Equal(t, 2.0, testutil.ToFloat64(second.ordersCreated))
}
