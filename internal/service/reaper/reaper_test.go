package reaper_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
	"github.com/swaplabs/sagashop/internal/service/reaper"
	"github.com/swaplabs/sagashop/internal/storage/memory"
)

const tenant = "tenant-1"

type capturePublisher struct {
	mu        sync.Mutex
	published []rabbit.Envelope
	failNext  int
}

func (p *capturePublisher) Publish(_ context.Context, env rabbit.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext > 0 {
		p.failNext--
		return errors.New("broker unavailable")
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

func storedOrder(id string, status domain.OrderStatus, age time.Duration) domain.Order {
	createdAt := time.Now().UTC().Add(-age)
	return domain.Order{
		ID:        id,
		SagaID:    "saga-" + id,
		TenantID:  tenant,
		Status:    status,
		Items:     []domain.OrderItem{{ProductID: "mouse", Quantity: 1}},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestReapOnceCancelsOnlyStalePendingOrders(t *testing.T) {
	orders := memory.NewOrderRepository()
	for _, o := range []domain.Order{
		storedOrder("stale-pending", domain.OrderStatusPending, 10*time.Minute),
		storedOrder("fresh-pending", domain.OrderStatusPending, time.Minute),
		storedOrder("stale-completed", domain.OrderStatusCompleted, 10*time.Minute),
	} {
		if err := orders.Create(o); err != nil {
			t.Fatalf("create %s failed: %v", o.ID, err)
		}
	}

	publisher := &capturePublisher{}
	worker := reaper.NewWorker(orders, publisher, reaper.WithTimeout(5*time.Minute))

	cancelled, err := worker.ReapOnce(context.Background())
	if err != nil {
		t.Fatalf("reap failed: %v", err)
	}
	if cancelled != 1 {
		t.Fatalf("expected 1 cancelled order, got %d", cancelled)
	}

	stale, err := orders.Get(tenant, "stale-pending")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stale.Status != domain.OrderStatusCancelled || stale.ErrorMessage != "Order timed out" {
		t.Fatalf("expected CANCELLED with timeout reason, got %s %q", stale.Status, stale.ErrorMessage)
	}

	fresh, _ := orders.Get(tenant, "fresh-pending")
	if fresh.Status != domain.OrderStatusPending {
		t.Fatalf("fresh order must stay PENDING, got %s", fresh.Status)
	}
	completed, _ := orders.Get(tenant, "stale-completed")
	if completed.Status != domain.OrderStatusCompleted {
		t.Fatalf("terminal order must be untouched, got %s", completed.Status)
	}

	events := publisher.events()
	if len(events) != 1 || events[0].Type != rabbit.EventTypeOrderCancelled {
		t.Fatalf("expected one ORDER_CANCELLED, got %+v", events)
	}
	if events[0].CorrelationID != "saga-stale-pending" || events[0].TenantID != tenant {
		t.Fatalf("envelope must carry the stored saga id and tenant: %+v", events[0])
	}
	var data rabbit.OrderCancelledData
	if err := events[0].DecodeData(&data); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if data.OrderID != "stale-pending" || data.Reason != "Order timed out" {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestReapOnceNothingExpired(t *testing.T) {
	orders := memory.NewOrderRepository()
	if err := orders.Create(storedOrder("fresh", domain.OrderStatusPending, time.Minute)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	publisher := &capturePublisher{}
	worker := reaper.NewWorker(orders, publisher, reaper.WithTimeout(5*time.Minute))

	cancelled, err := worker.ReapOnce(context.Background())
	if err != nil {
		t.Fatalf("reap failed: %v", err)
	}
	if cancelled != 0 {
		t.Fatalf("expected 0 cancelled, got %d", cancelled)
	}
	if len(publisher.events()) != 0 {
		t.Fatalf("no events expected")
	}
}

func TestReapOnceRetriesFailedPublishNextRun(t *testing.T) {
	orders := memory.NewOrderRepository()
	if err := orders.Create(storedOrder("stale", domain.OrderStatusPending, 10*time.Minute)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	publisher := &capturePublisher{failNext: 1}
	worker := reaper.NewWorker(orders, publisher, reaper.WithTimeout(5*time.Minute))

	cancelled, err := worker.ReapOnce(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if cancelled != 1 {
		t.Fatalf("expected 1 cancelled despite publish failure, got %d", cancelled)
	}
	if len(publisher.events()) != 0 {
		t.Fatalf("publish failed, no event should be recorded yet")
	}

	// Заказ уже CANCELLED, следующий цикл ничего не отменяет, но обязан
	// дослать потерянное событие, иначе резерв не снимется.
	cancelled, err = worker.ReapOnce(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if cancelled != 0 {
		t.Fatalf("second run must cancel nothing, got %d", cancelled)
	}

	events := publisher.events()
	if len(events) != 1 || events[0].Type != rabbit.EventTypeOrderCancelled {
		t.Fatalf("expected the retried ORDER_CANCELLED, got %+v", events)
	}
	if events[0].CorrelationID != "saga-stale" {
		t.Fatalf("retried event must keep the stored saga id: %+v", events[0])
	}

	var data rabbit.OrderCancelledData
	if err := events[0].DecodeData(&data); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if data.OrderID != "stale" || data.Reason != "Order timed out" {
		t.Fatalf("unexpected payload: %+v", data)
	}

	// Доставленное событие из очереди повторов уходит, третий цикл молчит.
	if _, err := worker.ReapOnce(context.Background()); err != nil {
		t.Fatalf("third run failed: %v", err)
	}
	if len(publisher.events()) != 1 {
		t.Fatalf("announced order must not be re-announced, got %d events", len(publisher.events()))
	}
}

func TestReapOnceIsIdempotentAcrossRuns(t *testing.T) {
	orders := memory.NewOrderRepository()
	if err := orders.Create(storedOrder("stale", domain.OrderStatusPending, 10*time.Minute)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	publisher := &capturePublisher{}
	worker := reaper.NewWorker(orders, publisher, reaper.WithTimeout(5*time.Minute))

	if cancelled, err := worker.ReapOnce(context.Background()); err != nil || cancelled != 1 {
		t.Fatalf("first run: cancelled=%d err=%v", cancelled, err)
	}
	if cancelled, err := worker.ReapOnce(context.Background()); err != nil || cancelled != 0 {
		t.Fatalf("second run must find nothing: cancelled=%d err=%v", cancelled, err)
	}
	if len(publisher.events()) != 1 {
		t.Fatalf("cancelled order must be announced exactly once, got %d events", len(publisher.events()))
	}
}
