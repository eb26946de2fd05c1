package inventory

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
	"github.com/swaplabs/sagashop/internal/metrics"
	"github.com/swaplabs/sagashop/internal/service/simulator"
)

// EventHandler — сторона инвентаря в саге: резервирует сток по ORDER_CREATED,
// подтверждает резерв по PAYMENT_SUCCESS и снимает его по PAYMENT_FAILED и
// ORDER_CANCELLED. Каждое действие идемпотентно относительно redelivery.
type EventHandler struct {
	inventory   domain.InventoryRepository
	idempotency domain.IdempotencyRepository
	publisher   rabbit.EventPublisher
	simulator   *simulator.Simulator
	metrics     *metrics.SagaMetrics
	logger      *log.Entry
}

// Option настраивает EventHandler.
type Option func(*EventHandler)

// WithSimulator подменяет симулятор исходов резервирования (для тестов).
func WithSimulator(sim *simulator.Simulator) Option {
	return func(h *EventHandler) {
		if sim != nil {
			h.simulator = sim
		}
	}
}

// NewEventHandler создаёт обработчик событий inventory-сервиса.
func NewEventHandler(
	inventory domain.InventoryRepository,
	idempotency domain.IdempotencyRepository,
	publisher rabbit.EventPublisher,
	sagaMetrics *metrics.SagaMetrics,
	logger *log.Entry,
	opts ...Option,
) *EventHandler {
	if logger == nil {
		logger = log.New().WithField("component", "inventory-handler")
	}
	h := &EventHandler{
		inventory:   inventory,
		idempotency: idempotency,
		publisher:   publisher,
		simulator:   simulator.New(),
		metrics:     sagaMetrics,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle маршрутизирует событие по типу. Неизвестные типы подтверждаются.
func (h *EventHandler) Handle(ctx context.Context, env rabbit.Envelope) error {
	start := time.Now()
	if h.metrics != nil {
		h.metrics.RecordEventConsumed(string(env.Type))
		defer func() {
			h.metrics.RecordHandlerDuration(string(env.Type), time.Since(start))
		}()
	}

	switch env.Type {
	case rabbit.EventTypeOrderCreated:
		return h.handleOrderCreated(ctx, env)
	case rabbit.EventTypePaymentSuccess:
		return h.handlePaymentSuccess(env)
	case rabbit.EventTypePaymentFailed, rabbit.EventTypeOrderCancelled:
		return h.handleRelease(env)
	default:
		h.logger.WithField("event_type", env.Type).Warn("unknown event type, acking")
		return nil
	}
}

// handleOrderCreated резервирует сток заказа и публикует исход:
// INVENTORY_RESERVED при успехе, INVENTORY_FAILED при нехватке. Бизнес-отказ
// тоже помечается обработанным: повторная доставка не должна публиковать
// второй INVENTORY_FAILED.
func (h *EventHandler) handleOrderCreated(ctx context.Context, env rabbit.Envelope) error {
	var order domain.Order
	if err := env.DecodeData(&order); err != nil {
		return err
	}

	key := domain.ReserveKey(order.ID)
	processed, err := h.idempotency.HasProcessed(env.TenantID, key)
	if err != nil {
		return err
	}
	if processed {
		if h.metrics != nil {
			h.metrics.RecordDuplicateEvent()
		}
		h.logger.WithField("order_id", order.ID).Debug("reserve already processed, skipping")
		return nil
	}

	result, err := h.reserve(env.TenantID, order)
	if err != nil {
		return err
	}

	if !result.Success {
		reason := result.FailureReason()
		failEnv, err := rabbit.NewEnvelope(rabbit.EventTypeInventoryFailed, env.CorrelationID, env.TenantID, rabbit.InventoryFailedData{
			OrderID: order.ID,
			Reason:  reason,
		})
		if err != nil {
			return err
		}
		if err := h.publisher.Publish(ctx, failEnv); err != nil {
			return err
		}
		if h.metrics != nil {
			h.metrics.RecordReservationFailed()
			h.metrics.RecordEventPublished(string(rabbit.EventTypeInventoryFailed))
		}
		h.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"saga_id":  env.CorrelationID,
			"reason":   reason,
		}).Info("reservation rejected")
		return h.idempotency.MarkProcessed(env.TenantID, key)
	}

	okEnv, err := rabbit.NewEnvelope(rabbit.EventTypeInventoryReserved, env.CorrelationID, env.TenantID, rabbit.InventoryReservedData{
		OrderID:          order.ID,
		Items:            order.Items,
		PaymentBehaviour: order.PaymentBehaviour,
	})
	if err != nil {
		return err
	}
	if err := h.publisher.Publish(ctx, okEnv); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordReservationReserved()
		h.metrics.RecordEventPublished(string(rabbit.EventTypeInventoryReserved))
	}

	h.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"saga_id":  env.CorrelationID,
		"items":    len(order.Items),
	}).Info("stock reserved")

	return h.idempotency.MarkProcessed(env.TenantID, key)
}

// reserve применяет inventoryBehaviour заказа: failure симулирует нехватку
// всего запрошенного, random делает то же с вероятностью 50%. Симулированный
// отказ не трогает сток.
func (h *EventHandler) reserve(tenantID string, order domain.Order) (domain.ReservationResult, error) {
	if !h.simulator.Decide(order.InventoryBehaviour) {
		failed := make([]domain.FailedItem, 0, len(order.Items))
		for _, item := range order.Items {
			failed = append(failed, domain.FailedItem{ProductID: item.ProductID, Requested: item.Quantity})
		}
		return domain.ReservationResult{Success: false, FailedItems: failed}, nil
	}
	return h.inventory.ReserveItems(tenantID, order.ID, order.Items)
}

// handlePaymentSuccess финализирует продажу: списывает сток и закрывает резерв.
func (h *EventHandler) handlePaymentSuccess(env rabbit.Envelope) error {
	var data rabbit.PaymentSuccessData
	if err := env.DecodeData(&data); err != nil {
		return err
	}

	key := domain.ConfirmKey(data.OrderID)
	processed, err := h.idempotency.HasProcessed(env.TenantID, key)
	if err != nil {
		return err
	}
	if processed {
		if h.metrics != nil {
			h.metrics.RecordDuplicateEvent()
		}
		h.logger.WithField("order_id", data.OrderID).Debug("confirm already processed, skipping")
		return nil
	}

	confirmed, err := h.inventory.ConfirmReservation(env.TenantID, data.OrderID)
	if err != nil {
		return err
	}
	if !confirmed {
		h.logger.WithField("order_id", data.OrderID).Warn("no pending reservation to confirm")
	} else if h.metrics != nil {
		h.metrics.RecordReservationConfirmed()
	}

	h.logger.WithFields(log.Fields{
		"order_id":  data.OrderID,
		"saga_id":   env.CorrelationID,
		"confirmed": confirmed,
	}).Info("reservation confirm handled")

	return h.idempotency.MarkProcessed(env.TenantID, key)
}

// handleRelease — компенсация: возвращает зарезервированный сток в доступный.
// Отсутствие резерва — штатный no-op (резерва могло не быть или он уже снят).
func (h *EventHandler) handleRelease(env rabbit.Envelope) error {
	orderID, err := releaseOrderID(env)
	if err != nil {
		return err
	}

	key := domain.ReleaseKey(orderID)
	processed, err := h.idempotency.HasProcessed(env.TenantID, key)
	if err != nil {
		return err
	}
	if processed {
		if h.metrics != nil {
			h.metrics.RecordDuplicateEvent()
		}
		h.logger.WithField("order_id", orderID).Debug("release already processed, skipping")
		return nil
	}

	released, err := h.inventory.ReleaseItems(env.TenantID, orderID)
	if err != nil {
		return err
	}
	if released && h.metrics != nil {
		h.metrics.RecordReservationReleased()
	}

	h.logger.WithFields(log.Fields{
		"order_id":   orderID,
		"saga_id":    env.CorrelationID,
		"event_type": env.Type,
		"released":   released,
	}).Info("reservation release handled")

	return h.idempotency.MarkProcessed(env.TenantID, key)
}

func releaseOrderID(env rabbit.Envelope) (string, error) {
	switch env.Type {
	case rabbit.EventTypeOrderCancelled:
		var data rabbit.OrderCancelledData
		if err := env.DecodeData(&data); err != nil {
			return "", err
		}
		return data.OrderID, nil
	default:
		var data rabbit.PaymentFailedData
		if err := env.DecodeData(&data); err != nil {
			return "", err
		}
		return data.OrderID, nil
	}
}

var _ rabbit.EventHandler = (&EventHandler{}).Handle
