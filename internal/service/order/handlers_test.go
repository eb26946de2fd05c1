package order_test

import (
	"context"
	"testing"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
	"github.com/swaplabs/sagashop/internal/service/order"
	"github.com/swaplabs/sagashop/internal/storage/memory"
)

func pendingOrder(t *testing.T, orders domain.OrderRepository, id string) domain.Order {
	t.Helper()
	o := domain.Order{
		ID:       id,
		SagaID:   "saga-" + id,
		TenantID: tenant,
		Status:   domain.OrderStatusPending,
		Items:    []domain.OrderItem{{ProductID: "mouse", Quantity: 2}},
	}
	if err := orders.Create(o); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return o
}

func mustEnvelope(t *testing.T, eventType rabbit.EventType, sagaID string, data any) rabbit.Envelope {
	t.Helper()
	env, err := rabbit.NewEnvelope(eventType, sagaID, tenant, data)
	if err != nil {
		t.Fatalf("new envelope failed: %v", err)
	}
	return env
}

func TestHandlePaymentSuccessCompletesOrder(t *testing.T) {
	orders := memory.NewOrderRepository()
	idempotency := memory.NewIdempotencyRepository()
	handler := order.NewEventHandler(orders, idempotency, nil, nil)

	o := pendingOrder(t, orders, "order-1")
	env := mustEnvelope(t, rabbit.EventTypePaymentSuccess, o.SagaID, rabbit.PaymentSuccessData{
		OrderID: o.ID, AmountMinor: 4000, TransactionID: "tx-1",
	})

	if err := handler.Handle(context.Background(), env); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	stored, err := orders.Get(tenant, o.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", stored.Status)
	}
	if stored.ErrorMessage != "" {
		t.Fatalf("completed order must not carry an error message")
	}
}

func TestHandlePaymentFailedCancelsWithReason(t *testing.T) {
	orders := memory.NewOrderRepository()
	handler := order.NewEventHandler(orders, memory.NewIdempotencyRepository(), nil, nil)

	o := pendingOrder(t, orders, "order-1")
	env := mustEnvelope(t, rabbit.EventTypePaymentFailed, o.SagaID, rabbit.PaymentFailedData{
		OrderID: o.ID, Reason: "Payment declined",
	})

	if err := handler.Handle(context.Background(), env); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	stored, _ := orders.Get(tenant, o.ID)
	if stored.Status != domain.OrderStatusCancelled || stored.ErrorMessage != "Payment declined" {
		t.Fatalf("unexpected order state: %+v", stored)
	}
}

func TestHandleInventoryFailedCancelsWithReason(t *testing.T) {
	orders := memory.NewOrderRepository()
	handler := order.NewEventHandler(orders, memory.NewIdempotencyRepository(), nil, nil)

	o := pendingOrder(t, orders, "order-1")
	reason := "Insufficient stock: laptop (requested: 10, available: 5)"
	env := mustEnvelope(t, rabbit.EventTypeInventoryFailed, o.SagaID, rabbit.InventoryFailedData{
		OrderID: o.ID, Reason: reason,
	})

	if err := handler.Handle(context.Background(), env); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	stored, _ := orders.Get(tenant, o.ID)
	if stored.Status != domain.OrderStatusCancelled || stored.ErrorMessage != reason {
		t.Fatalf("unexpected order state: %+v", stored)
	}
}

func TestHandleDuplicateDeliveryIsNoop(t *testing.T) {
	orders := memory.NewOrderRepository()
	handler := order.NewEventHandler(orders, memory.NewIdempotencyRepository(), nil, nil)

	o := pendingOrder(t, orders, "order-1")
	env := mustEnvelope(t, rabbit.EventTypePaymentSuccess, o.SagaID, rabbit.PaymentSuccessData{OrderID: o.ID})

	for i := 0; i < 3; i++ {
		if err := handler.Handle(context.Background(), env); err != nil {
			t.Fatalf("delivery %d failed: %v", i, err)
		}
	}

	stored, _ := orders.Get(tenant, o.ID)
	if stored.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", stored.Status)
	}
}

func TestHandleLateEventAfterTerminalStatus(t *testing.T) {
	orders := memory.NewOrderRepository()
	handler := order.NewEventHandler(orders, memory.NewIdempotencyRepository(), nil, nil)

	o := pendingOrder(t, orders, "order-1")

	// Сначала отказ инвентаря, затем поздний PAYMENT_FAILED: разные ключи,
	// но терминальный статус не меняется.
	failEnv := mustEnvelope(t, rabbit.EventTypeInventoryFailed, o.SagaID, rabbit.InventoryFailedData{
		OrderID: o.ID, Reason: "no stock",
	})
	if err := handler.Handle(context.Background(), failEnv); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	lateEnv := mustEnvelope(t, rabbit.EventTypePaymentFailed, o.SagaID, rabbit.PaymentFailedData{
		OrderID: o.ID, Reason: "late",
	})
	if err := handler.Handle(context.Background(), lateEnv); err != nil {
		t.Fatalf("late handle failed: %v", err)
	}

	stored, _ := orders.Get(tenant, o.ID)
	if stored.ErrorMessage != "no stock" {
		t.Fatalf("late event must not overwrite the reason: %+v", stored)
	}
}

func TestHandleUnknownEventAcked(t *testing.T) {
	handler := order.NewEventHandler(memory.NewOrderRepository(), memory.NewIdempotencyRepository(), nil, nil)

	env := mustEnvelope(t, "SOMETHING_NEW", "saga-1", map[string]string{"orderId": "order-1"})
	if err := handler.Handle(context.Background(), env); err != nil {
		t.Fatalf("unknown event must be acked, got %v", err)
	}
}

func TestHandleEventForMissingOrder(t *testing.T) {
	handler := order.NewEventHandler(memory.NewOrderRepository(), memory.NewIdempotencyRepository(), nil, nil)

	env := mustEnvelope(t, rabbit.EventTypePaymentSuccess, "saga-x", rabbit.PaymentSuccessData{OrderID: "ghost"})
	if err := handler.Handle(context.Background(), env); err != nil {
		t.Fatalf("missing order is a recoverable anomaly, got %v", err)
	}
}
