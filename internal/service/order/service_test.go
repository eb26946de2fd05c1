package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
	"github.com/swaplabs/sagashop/internal/service/order"
	"github.com/swaplabs/sagashop/internal/storage/memory"
)

const tenant = "tenant-1"

// capturePublisher собирает опубликованные конверты.
type capturePublisher struct {
	mu        sync.Mutex
	published []rabbit.Envelope
	failWith  error
}

func (p *capturePublisher) Publish(_ context.Context, env rabbit.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.published = append(p.published, env)
	return nil
}

func (p *capturePublisher) events() []rabbit.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]rabbit.Envelope, len(p.published))
	copy(out, p.published)
	return out
}

func TestCreateOrderPublishesOrderCreated(t *testing.T) {
	orders := memory.NewOrderRepository()
	publisher := &capturePublisher{}
	svc := order.NewService(orders, publisher, nil, nil)

	created, err := svc.CreateOrder(context.Background(), tenant, order.CreateOrderInput{
		Items:            []domain.OrderItem{{ProductID: "mouse", Quantity: 2}},
		PaymentBehaviour: domain.BehaviourSuccess,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if created.ID == "" || created.SagaID == "" {
		t.Fatalf("order must get fresh ids: %+v", created)
	}
	if created.Status != domain.OrderStatusPending {
		t.Fatalf("new order must be PENDING, got %s", created.Status)
	}

	stored, err := svc.GetOrder(tenant, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != domain.OrderStatusPending {
		t.Fatalf("stored order must be PENDING")
	}

	events := publisher.events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	env := events[0]
	if env.Type != rabbit.EventTypeOrderCreated {
		t.Fatalf("expected ORDER_CREATED, got %s", env.Type)
	}
	if env.CorrelationID != created.SagaID || env.TenantID != tenant {
		t.Fatalf("envelope must carry saga and tenant ids: %+v", env)
	}

	var payload domain.Order
	if err := env.DecodeData(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.ID != created.ID || len(payload.Items) != 1 {
		t.Fatalf("payload must carry the full order: %+v", payload)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc := order.NewService(memory.NewOrderRepository(), &capturePublisher{}, nil, nil)

	_, err := svc.CreateOrder(context.Background(), tenant, order.CreateOrderInput{})
	if !errors.Is(err, domain.ErrItemsRequired) {
		t.Fatalf("expected ErrItemsRequired, got %v", err)
	}

	_, err = svc.CreateOrder(context.Background(), "", order.CreateOrderInput{
		Items: []domain.OrderItem{{ProductID: "mouse", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}

	_, err = svc.CreateOrder(context.Background(), tenant, order.CreateOrderInput{
		Items:            []domain.OrderItem{{ProductID: "mouse", Quantity: 1}},
		PaymentBehaviour: "sometimes",
	})
	if !errors.Is(err, domain.ErrBehaviourInvalid) {
		t.Fatalf("expected ErrBehaviourInvalid, got %v", err)
	}
}

func TestCreateOrderPublishFailureSurfaces(t *testing.T) {
	orders := memory.NewOrderRepository()
	publisher := &capturePublisher{failWith: errors.New("broker down")}
	svc := order.NewService(orders, publisher, nil, nil)

	_, err := svc.CreateOrder(context.Background(), tenant, order.CreateOrderInput{
		Items: []domain.OrderItem{{ProductID: "mouse", Quantity: 1}},
	})
	if err == nil {
		t.Fatalf("publish failure must surface")
	}

	// Заказ остаётся PENDING: его подберёт reaper.
	stored, err := svc.ListOrders(tenant)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(stored) != 1 || stored[0].Status != domain.OrderStatusPending {
		t.Fatalf("order must stay pending after publish failure: %+v", stored)
	}
}
