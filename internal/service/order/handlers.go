package order

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
	"github.com/swaplabs/sagashop/internal/metrics"
)

// EventHandler обрабатывает события инвентаря и платежей, закрывающие сагу
// заказа: PAYMENT_SUCCESS завершает заказ, PAYMENT_FAILED и INVENTORY_FAILED
// отменяют его с причиной.
type EventHandler struct {
	orders      domain.OrderRepository
	idempotency domain.IdempotencyRepository
	metrics     *metrics.SagaMetrics
	logger      *log.Entry
}

// NewEventHandler создаёт обработчик событий order-сервиса.
func NewEventHandler(orders domain.OrderRepository, idempotency domain.IdempotencyRepository, sagaMetrics *metrics.SagaMetrics, logger *log.Entry) *EventHandler {
	if logger == nil {
		logger = log.New().WithField("component", "order-handler")
	}
	return &EventHandler{
		orders:      orders,
		idempotency: idempotency,
		metrics:     sagaMetrics,
		logger:      logger,
	}
}

// Handle маршрутизирует событие. Неизвестные типы логируются и подтверждаются:
// новые события других сервисов не должны застревать в очереди.
func (h *EventHandler) Handle(ctx context.Context, env rabbit.Envelope) error {
	start := time.Now()
	if h.metrics != nil {
		h.metrics.RecordEventConsumed(string(env.Type))
		defer func() {
			h.metrics.RecordHandlerDuration(string(env.Type), time.Since(start))
		}()
	}

	switch env.Type {
	case rabbit.EventTypePaymentSuccess:
		return h.handlePaymentSuccess(env)
	case rabbit.EventTypePaymentFailed:
		return h.handlePaymentFailed(env)
	case rabbit.EventTypeInventoryFailed:
		return h.handleInventoryFailed(env)
	default:
		h.logger.WithField("event_type", env.Type).Warn("unknown event type, acking")
		return nil
	}
}

func (h *EventHandler) handlePaymentSuccess(env rabbit.Envelope) error {
	var data rabbit.PaymentSuccessData
	if err := env.DecodeData(&data); err != nil {
		return err
	}

	return h.transition(env, data.OrderID, domain.OrderStatusCompleted, "")
}

func (h *EventHandler) handlePaymentFailed(env rabbit.Envelope) error {
	var data rabbit.PaymentFailedData
	if err := env.DecodeData(&data); err != nil {
		return err
	}

	return h.transition(env, data.OrderID, domain.OrderStatusCancelled, data.Reason)
}

func (h *EventHandler) handleInventoryFailed(env rabbit.Envelope) error {
	var data rabbit.InventoryFailedData
	if err := env.DecodeData(&data); err != nil {
		return err
	}

	return h.transition(env, data.OrderID, domain.OrderStatusCancelled, data.Reason)
}

// transition выполняет идемпотентный перевод заказа в терминальный статус.
// Ключ кодирует заказ и тип события, так что PAYMENT_FAILED после
// INVENTORY_FAILED не считается дубликатом, но условный UPDATE всё равно
// пропустит его: заказ уже не PENDING.
func (h *EventHandler) transition(env rabbit.Envelope, orderID string, status domain.OrderStatus, errorMessage string) error {
	key := domain.OrderUpdateKey(orderID, string(env.Type))
	processed, err := h.idempotency.HasProcessed(env.TenantID, key)
	if err != nil {
		return err
	}
	if processed {
		if h.metrics != nil {
			h.metrics.RecordDuplicateEvent()
		}
		h.logger.WithFields(log.Fields{
			"order_id":   orderID,
			"event_type": env.Type,
		}).Debug("event already processed, skipping")
		return nil
	}

	updated, err := h.orders.UpdateStatus(env.TenantID, orderID, status, errorMessage)
	if err != nil {
		return err
	}
	if !updated {
		h.logger.WithFields(log.Fields{
			"order_id":   orderID,
			"event_type": env.Type,
			"status":     status,
		}).Debug("order not pending, status unchanged")
	} else if h.metrics != nil {
		switch status {
		case domain.OrderStatusCompleted:
			h.metrics.RecordOrderCompleted()
		case domain.OrderStatusCancelled:
			h.metrics.RecordOrderCancelled()
		}
	}

	if err := h.idempotency.MarkProcessed(env.TenantID, key); err != nil {
		return err
	}

	h.logger.WithFields(log.Fields{
		"order_id":   orderID,
		"saga_id":    env.CorrelationID,
		"event_type": env.Type,
		"status":     status,
		"updated":    updated,
	}).Info("order status transition handled")

	return nil
}

var _ rabbit.EventHandler = (&EventHandler{}).Handle
