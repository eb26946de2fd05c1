package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
	"github.com/swaplabs/sagashop/internal/metrics"
)

// CreateOrderInput — параметры создания заказа.
type CreateOrderInput struct {
	Items              []domain.OrderItem
	PaymentBehaviour   domain.Behaviour
	InventoryBehaviour domain.Behaviour
}

// Service реализует команды и запросы order-сервиса. Создание заказа
// стартует сагу: заказ сохраняется в PENDING и публикуется ORDER_CREATED;
// дальше статус двигают только входящие события.
type Service struct {
	orders    domain.OrderRepository
	publisher rabbit.EventPublisher
	metrics   *metrics.SagaMetrics
	logger    *log.Entry
}

// NewService создаёт order-сервис.
func NewService(orders domain.OrderRepository, publisher rabbit.EventPublisher, sagaMetrics *metrics.SagaMetrics, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		orders:    orders,
		publisher: publisher,
		metrics:   sagaMetrics,
		logger:    logger,
	}
}

// CreateOrder валидирует вход, сохраняет заказ в PENDING и публикует
// ORDER_CREATED. Заказ возвращается сразу, не дожидаясь исхода саги.
func (s *Service) CreateOrder(ctx context.Context, tenantID string, input CreateOrderInput) (domain.Order, error) {
	now := time.Now().UTC()
	order := domain.Order{
		ID:                 uuid.NewString(),
		SagaID:             uuid.NewString(),
		TenantID:           tenantID,
		Items:              input.Items,
		Status:             domain.OrderStatusPending,
		PaymentBehaviour:   input.PaymentBehaviour,
		InventoryBehaviour: input.InventoryBehaviour,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	if err := s.orders.Create(order); err != nil {
		return domain.Order{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}

	env, err := rabbit.NewEnvelope(rabbit.EventTypeOrderCreated, order.SagaID, tenantID, order)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.publisher.Publish(ctx, env); err != nil {
		// Заказ уже сохранён; без события сага не стартует, и PENDING-заказ
		// позже подберёт reaper. Ошибку отдаём вызывающему.
		s.logger.WithError(err).WithField("order_id", order.ID).Error("publish ORDER_CREATED failed")
		return domain.Order{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordEventPublished(string(rabbit.EventTypeOrderCreated))
	}

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"saga_id":  order.SagaID,
		"items":    len(order.Items),
	}).Info("order created, saga started")

	return order, nil
}

// GetOrder возвращает заказ tenant-а.
func (s *Service) GetOrder(tenantID, orderID string) (domain.Order, error) {
	return s.orders.Get(tenantID, orderID)
}

// ListOrders возвращает заказы tenant-а, новые первыми.
func (s *Service) ListOrders(tenantID string) ([]domain.Order, error) {
	return s.orders.List(tenantID)
}

// Reset удаляет заказы tenant-а.
func (s *Service) Reset(tenantID string) error {
	return s.orders.Reset(tenantID)
}
