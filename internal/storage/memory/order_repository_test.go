package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/storage/memory"
)

func newOrder(id string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:       id,
		SagaID:   "saga-" + id,
		TenantID: tenant,
		Status:   domain.OrderStatusPending,
		Items: []domain.OrderItem{
			{ProductID: "laptop", Quantity: 1},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepositoryCreateGet(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1")

	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(order); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected ErrOrderAlreadyExists, got %v", err)
	}

	stored, err := repo.Get(tenant, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.SagaID != order.SagaID {
		t.Fatalf("expected saga id %s, got %s", order.SagaID, stored.SagaID)
	}

	if _, err := repo.Get(tenant, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := repo.Get("other-tenant", order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("order must not leak across tenants")
	}
}

func TestOrderRepositoryListNewestFirst(t *testing.T) {
	repo := memory.NewOrderRepository()

	older := newOrder("order-1")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := newOrder("order-2")

	if err := repo.Create(older); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(newer); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	orders, err := repo.List(tenant)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID != "order-2" {
		t.Fatalf("expected newest first, got %s", orders[0].ID)
	}
}

func TestOrderRepositoryUpdateStatusOnlyFromPending(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1")
	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := repo.UpdateStatus(tenant, order.ID, domain.OrderStatusCompleted, "")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !updated {
		t.Fatalf("expected update to apply")
	}

	// Позднее событие не перетирает терминальный статус.
	updated, err = repo.UpdateStatus(tenant, order.ID, domain.OrderStatusCancelled, "late event")
	if err != nil {
		t.Fatalf("late update failed: %v", err)
	}
	if updated {
		t.Fatalf("terminal status must not change")
	}

	stored, err := repo.Get(tenant, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != domain.OrderStatusCompleted || stored.ErrorMessage != "" {
		t.Fatalf("unexpected order state: %+v", stored)
	}

	// Неизвестный заказ — false, не ошибка.
	updated, err = repo.UpdateStatus(tenant, "missing", domain.OrderStatusCancelled, "")
	if err != nil || updated {
		t.Fatalf("missing order: updated=%v err=%v", updated, err)
	}
}

func TestOrderRepositoryCancelExpired(t *testing.T) {
	repo := memory.NewOrderRepository()

	stale := newOrder("order-stale")
	stale.CreatedAt = time.Now().UTC().Add(-10 * time.Minute)
	fresh := newOrder("order-fresh")
	done := newOrder("order-done")
	done.CreatedAt = stale.CreatedAt
	done.Status = domain.OrderStatusCompleted

	for _, o := range []domain.Order{stale, fresh, done} {
		if err := repo.Create(o); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	cancelled, err := repo.CancelExpired(time.Now().UTC().Add(-5*time.Minute), "Order timed out")
	if err != nil {
		t.Fatalf("cancel expired failed: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].ID != "order-stale" {
		t.Fatalf("expected only the stale pending order, got %+v", cancelled)
	}
	if cancelled[0].Status != domain.OrderStatusCancelled || cancelled[0].ErrorMessage != "Order timed out" {
		t.Fatalf("cancelled order must carry the reason: %+v", cancelled[0])
	}

	freshStored, err := repo.Get(tenant, "order-fresh")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if freshStored.Status != domain.OrderStatusPending {
		t.Fatalf("fresh order must stay pending")
	}
}

func TestOrderRepositoryReset(t *testing.T) {
	repo := memory.NewOrderRepository()
	if err := repo.Create(newOrder("order-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	other := newOrder("order-2")
	other.TenantID = "tenant-2"
	if err := repo.Create(other); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.Reset(tenant); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	orders, err := repo.List(tenant)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("reset must clear tenant orders")
	}

	kept, err := repo.List("tenant-2")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("other tenant must keep its orders")
	}
}
