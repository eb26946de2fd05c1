package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
	"github.com/swaplabs/sagashop/internal/metrics"
	"github.com/swaplabs/sagashop/internal/service/simulator"
)

const defaultProcessingDelay = 500 * time.Millisecond

// EventHandler обрабатывает INVENTORY_RESERVED: создаёт платёж, симулирует
// обработку с задержкой и публикует PAYMENT_SUCCESS или PAYMENT_FAILED.
// Исход фиксируется в реестре идемпотентности: повторная доставка не создаёт
// второй платёж и не публикует второй исход.
type EventHandler struct {
	payments    domain.PaymentRepository
	idempotency domain.IdempotencyRepository
	publisher   rabbit.EventPublisher
	simulator   *simulator.Simulator
	delay       time.Duration
	metrics     *metrics.SagaMetrics
	logger      *log.Entry
}

// Option настраивает EventHandler.
type Option func(*EventHandler)

// WithDelay задаёт симулируемую длительность обработки платежа.
func WithDelay(delay time.Duration) Option {
	return func(h *EventHandler) {
		if delay >= 0 {
			h.delay = delay
		}
	}
}

// WithSimulator подменяет симулятор исходов (для тестов).
func WithSimulator(sim *simulator.Simulator) Option {
	return func(h *EventHandler) {
		if sim != nil {
			h.simulator = sim
		}
	}
}

// WithLogger задаёт логгер обработчика.
func WithLogger(logger *log.Entry) Option {
	return func(h *EventHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewEventHandler создаёт обработчик событий payment-сервиса.
func NewEventHandler(
	payments domain.PaymentRepository,
	idempotency domain.IdempotencyRepository,
	publisher rabbit.EventPublisher,
	sagaMetrics *metrics.SagaMetrics,
	opts ...Option,
) *EventHandler {
	h := &EventHandler{
		payments:    payments,
		idempotency: idempotency,
		publisher:   publisher,
		simulator:   simulator.New(),
		delay:       defaultProcessingDelay,
		metrics:     sagaMetrics,
		logger:      log.WithField("component", "payment-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle маршрутизирует событие. Неизвестные типы подтверждаются.
func (h *EventHandler) Handle(ctx context.Context, env rabbit.Envelope) error {
	start := time.Now()
	if h.metrics != nil {
		h.metrics.RecordEventConsumed(string(env.Type))
		defer func() {
			h.metrics.RecordHandlerDuration(string(env.Type), time.Since(start))
		}()
	}

	switch env.Type {
	case rabbit.EventTypeInventoryReserved:
		return h.handleInventoryReserved(ctx, env)
	default:
		h.logger.WithField("event_type", env.Type).Warn("unknown event type, acking")
		return nil
	}
}

func (h *EventHandler) handleInventoryReserved(ctx context.Context, env rabbit.Envelope) error {
	var data rabbit.InventoryReservedData
	if err := env.DecodeData(&data); err != nil {
		return err
	}

	key := domain.PaymentKey(data.OrderID)
	processed, err := h.idempotency.HasProcessed(env.TenantID, key)
	if err != nil {
		return err
	}
	if processed {
		if h.metrics != nil {
			h.metrics.RecordDuplicateEvent()
		}
		h.logger.WithField("order_id", data.OrderID).Debug("payment already processed, skipping")
		return nil
	}

	now := time.Now().UTC()
	payment := domain.Payment{
		ID:          uuid.NewString(),
		TenantID:    env.TenantID,
		OrderID:     data.OrderID,
		AmountMinor: domain.OrderAmountMinor(data.Items),
		Status:      domain.PaymentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errs := payment.Validate(); len(errs) > 0 {
		// Неисправимый payload: пусть consumer отправит его в DLQ.
		return errs[0]
	}
	if err := h.payments.Create(payment); err != nil {
		return err
	}

	// Задержка имитирует обращение к платёжному провайдеру. Прерывается
	// остановкой сервиса: необработанное событие будет доставлено повторно.
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	success := h.simulator.Decide(data.PaymentBehaviour)

	status := domain.PaymentStatusFailed
	if success {
		status = domain.PaymentStatusSuccess
	}
	if _, err := h.payments.UpdateStatus(env.TenantID, payment.ID, status); err != nil {
		return err
	}

	var outcome rabbit.Envelope
	if success {
		outcome, err = rabbit.NewEnvelope(rabbit.EventTypePaymentSuccess, env.CorrelationID, env.TenantID, rabbit.PaymentSuccessData{
			OrderID:       data.OrderID,
			AmountMinor:   payment.AmountMinor,
			TransactionID: payment.ID,
		})
	} else {
		outcome, err = rabbit.NewEnvelope(rabbit.EventTypePaymentFailed, env.CorrelationID, env.TenantID, rabbit.PaymentFailedData{
			OrderID: data.OrderID,
			Reason:  "Payment declined",
		})
	}
	if err != nil {
		return err
	}
	if err := h.publisher.Publish(ctx, outcome); err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.RecordEventPublished(string(outcome.Type))
		if success {
			h.metrics.RecordPaymentSucceeded()
		} else {
			h.metrics.RecordPaymentFailed()
		}
	}

	h.logger.WithFields(log.Fields{
		"order_id":   data.OrderID,
		"saga_id":    env.CorrelationID,
		"payment_id": payment.ID,
		"amount":     payment.AmountMinor,
		"status":     status,
	}).Info("payment processed")

	return h.idempotency.MarkProcessed(env.TenantID, key)
}

var _ rabbit.EventHandler = (&EventHandler{}).Handle
