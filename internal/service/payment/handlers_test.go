package payment_test

import (
	"context"
	"sync"
	"testing"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
	"github.com/swaplabs/sagashop/internal/service/payment"
	"github.com/swaplabs/sagashop/internal/storage/memory"
)

const tenant = "tenant-1"

type capturePublisher struct {
	mu        sync.Mutex
	published []rabbit.Envelope
}

func (p *capturePublisher) Publish(_ context.Context, env rabbit.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
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

func reservedEnvelope(t *testing.T, orderID string, behaviour domain.Behaviour) rabbit.Envelope {
	t.Helper()
	env, err := rabbit.NewEnvelope(rabbit.EventTypeInventoryReserved, "saga-"+orderID, tenant, rabbit.InventoryReservedData{
		OrderID: orderID,
		Items: []domain.OrderItem{
			{ProductID: "laptop", Quantity: 2},
			{ProductID: "mouse", Quantity: 1},
		},
		PaymentBehaviour: behaviour,
	})
	if err != nil {
		t.Fatalf("new envelope failed: %v", err)
	}
	return env
}

func TestInventoryReservedSuccessfulPayment(t *testing.T) {
	payments := memory.NewPaymentRepository()
	publisher := &capturePublisher{}
	handler := payment.NewEventHandler(payments, memory.NewIdempotencyRepository(), publisher, nil,
		payment.WithDelay(0))

	if err := handler.Handle(context.Background(), reservedEnvelope(t, "order-1", domain.BehaviourSuccess)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	stored, err := payments.GetByOrderID(tenant, "order-1")
	if err != nil {
		t.Fatalf("payment must be persisted: %v", err)
	}
	if stored.Status != domain.PaymentStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", stored.Status)
	}
	if stored.AmountMinor != 3000 {
		t.Fatalf("amount = qty * 1000 minor units, got %d", stored.AmountMinor)
	}

	events := publisher.events()
	if len(events) != 1 || events[0].Type != rabbit.EventTypePaymentSuccess {
		t.Fatalf("expected one PAYMENT_SUCCESS, got %+v", events)
	}
	var data rabbit.PaymentSuccessData
	if err := events[0].DecodeData(&data); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if data.OrderID != "order-1" || data.AmountMinor != 3000 || data.TransactionID != stored.ID {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestInventoryReservedDeclinedPayment(t *testing.T) {
	payments := memory.NewPaymentRepository()
	publisher := &capturePublisher{}
	handler := payment.NewEventHandler(payments, memory.NewIdempotencyRepository(), publisher, nil,
		payment.WithDelay(0))

	if err := handler.Handle(context.Background(), reservedEnvelope(t, "order-1", domain.BehaviourFailure)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	stored, err := payments.GetByOrderID(tenant, "order-1")
	if err != nil {
		t.Fatalf("declined payment must still be persisted: %v", err)
	}
	if stored.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.Status)
	}

	events := publisher.events()
	if len(events) != 1 || events[0].Type != rabbit.EventTypePaymentFailed {
		t.Fatalf("expected one PAYMENT_FAILED, got %+v", events)
	}
	var data rabbit.PaymentFailedData
	if err := events[0].DecodeData(&data); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if data.Reason != "Payment declined" {
		t.Fatalf("unexpected reason %q", data.Reason)
	}
}

func TestInventoryReservedDuplicateDelivery(t *testing.T) {
	payments := memory.NewPaymentRepository()
	publisher := &capturePublisher{}
	handler := payment.NewEventHandler(payments, memory.NewIdempotencyRepository(), publisher, nil,
		payment.WithDelay(0))

	env := reservedEnvelope(t, "order-1", domain.BehaviourSuccess)
	for i := 0; i < 3; i++ {
		if err := handler.Handle(context.Background(), env); err != nil {
			t.Fatalf("delivery %d failed: %v", i, err)
		}
	}

	all, err := payments.List(tenant)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("duplicates must not create a second payment, got %d", len(all))
	}
	if len(publisher.events()) != 1 {
		t.Fatalf("duplicates must not publish a second outcome")
	}
}

func TestInventoryReservedCancelledContext(t *testing.T) {
	payments := memory.NewPaymentRepository()
	publisher := &capturePublisher{}
	handler := payment.NewEventHandler(payments, memory.NewIdempotencyRepository(), publisher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := handler.Handle(ctx, reservedEnvelope(t, "order-1", domain.BehaviourSuccess))
	if err == nil {
		t.Fatalf("cancelled context must abort processing for redelivery")
	}
	if len(publisher.events()) != 0 {
		t.Fatalf("aborted processing must not publish an outcome")
	}
}
