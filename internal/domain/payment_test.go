package domain_test

import (
	"testing"

	"github.com/swaplabs/sagashop/internal/domain"
)

func TestOrderAmountMinor(t *testing.T) {
	items := []domain.OrderItem{
		{ProductID: "laptop", Quantity: 2},
		{ProductID: "mouse", Quantity: 3},
	}

	amount := domain.OrderAmountMinor(items)
	want := 5 * domain.UnitPriceMinor
	if amount != want {
		t.Fatalf("expected amount %d, got %d", want, amount)
	}

	if domain.OrderAmountMinor(nil) != 0 {
		t.Fatalf("empty order must cost 0")
	}
}

func TestPaymentValidate(t *testing.T) {
	payment := domain.Payment{
		ID:          "pay-1",
		TenantID:    "tenant-1",
		OrderID:     "order-1",
		AmountMinor: 2000,
		Status:      domain.PaymentStatusPending,
	}
	if errs := payment.Validate(); len(errs) != 0 {
		t.Fatalf("valid payment must pass: %v", errs)
	}

	payment.OrderID = ""
	if errs := payment.Validate(); !containsErr(errs, domain.ErrOrderIDRequired) {
		t.Fatalf("expected ErrOrderIDRequired, got %v", errs)
	}
}

func TestReservationFailureReason(t *testing.T) {
	result := domain.ReservationResult{
		Success: false,
		FailedItems: []domain.FailedItem{
			{ProductID: "laptop", Requested: 10, Available: 5},
			{ProductID: "mouse", Requested: 3, Available: 0},
		},
	}

	want := "Insufficient stock: laptop (requested: 10, available: 5), mouse (requested: 3, available: 0)"
	if got := result.FailureReason(); got != want {
		t.Fatalf("unexpected reason:\n got %q\nwant %q", got, want)
	}

	ok := domain.ReservationResult{Success: true}
	if ok.FailureReason() != "" {
		t.Fatalf("successful result must have empty reason")
	}
}

func TestIdempotencyKeys(t *testing.T) {
	if got := domain.ReserveKey("o1"); got != "inventory:reserve:o1" {
		t.Fatalf("unexpected reserve key %q", got)
	}
	if got := domain.ReleaseKey("o1"); got != "inventory:release:o1" {
		t.Fatalf("unexpected release key %q", got)
	}
	if got := domain.ConfirmKey("o1"); got != "inventory:confirm:o1" {
		t.Fatalf("unexpected confirm key %q", got)
	}
	if got := domain.PaymentKey("o1"); got != "payment:o1" {
		t.Fatalf("unexpected payment key %q", got)
	}
	if got := domain.OrderUpdateKey("o1", "PAYMENT_SUCCESS"); got != "order-update:o1:PAYMENT_SUCCESS" {
		t.Fatalf("unexpected order update key %q", got)
	}
}

func TestSeedCatalog(t *testing.T) {
	catalog := domain.SeedCatalog("tenant-1")
	if len(catalog) != 4 {
		t.Fatalf("expected 4 products, got %d", len(catalog))
	}

	stocks := map[string]int32{}
	for _, p := range catalog {
		if p.TenantID != "tenant-1" {
			t.Fatalf("product %s has wrong tenant %q", p.ID, p.TenantID)
		}
		stocks[p.ID] = p.StockLevel
	}
	if stocks["laptop"] != 5 || stocks["mouse"] != 67 || stocks["keyboard"] != 21 || stocks["monitor"] != 15 {
		t.Fatalf("unexpected seed stocks: %v", stocks)
	}
}
