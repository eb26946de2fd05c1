package rabbit_test

import (
	"testing"

	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := rabbit.NewEnvelope(rabbit.EventTypeInventoryFailed, "saga-1", "tenant-1", rabbit.InventoryFailedData{
		OrderID: "order-1",
		Reason:  "Insufficient stock: laptop (requested: 10, available: 5)",
	})
	if err != nil {
		t.Fatalf("new envelope failed: %v", err)
	}
	if env.Type != rabbit.EventTypeInventoryFailed || env.CorrelationID != "saga-1" || env.TenantID != "tenant-1" {
		t.Fatalf("unexpected envelope header: %+v", env)
	}
	if env.Timestamp.IsZero() {
		t.Fatalf("timestamp must be set")
	}

	var data rabbit.InventoryFailedData
	if err := env.DecodeData(&data); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if data.OrderID != "order-1" || data.Reason == "" {
		t.Fatalf("unexpected payload %+v", data)
	}
}

func TestParseEnvelope(t *testing.T) {
	body := []byte(`{"type":"PAYMENT_SUCCESS","correlationId":"saga-1","tenantId":"tenant-1","timestamp":"2024-05-01T12:00:00Z","data":{"orderId":"order-1","amount":2000,"transactionId":"tx-1"}}`)

	env, err := rabbit.ParseEnvelope(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if env.Type != rabbit.EventTypePaymentSuccess {
		t.Fatalf("unexpected type %s", env.Type)
	}

	var data rabbit.PaymentSuccessData
	if err := env.DecodeData(&data); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if data.AmountMinor != 2000 || data.TransactionID != "tx-1" {
		t.Fatalf("unexpected payload %+v", data)
	}

	if _, err := rabbit.ParseEnvelope([]byte("not-json")); err == nil {
		t.Fatalf("malformed body must fail")
	}
}

func TestRoutingKeyFor(t *testing.T) {
	cases := []struct {
		eventType rabbit.EventType
		exchange  string
		key       string
	}{
		{rabbit.EventTypeOrderCreated, rabbit.ExchangeOrder, "order.created"},
		{rabbit.EventTypeOrderCancelled, rabbit.ExchangeOrder, "order.cancelled"},
		{rabbit.EventTypeInventoryReserved, rabbit.ExchangeInventory, "inventory.reserved"},
		{rabbit.EventTypeInventoryFailed, rabbit.ExchangeInventory, "inventory.failed"},
		{rabbit.EventTypePaymentSuccess, rabbit.ExchangePayment, "payment.success"},
		{rabbit.EventTypePaymentFailed, rabbit.ExchangePayment, "payment.failed"},
	}

	for _, tc := range cases {
		exchange, key, err := rabbit.RoutingKeyFor(tc.eventType)
		if err != nil {
			t.Fatalf("%s: %v", tc.eventType, err)
		}
		if exchange != tc.exchange || key != tc.key {
			t.Fatalf("%s: got %s/%s, want %s/%s", tc.eventType, exchange, key, tc.exchange, tc.key)
		}
	}

	if _, _, err := rabbit.RoutingKeyFor("UNKNOWN"); err == nil {
		t.Fatalf("unknown event type must fail")
	}
}

// Маршрутизация фиксирует, какие события видит каждый сервис.
func TestBindingTables(t *testing.T) {
	if len(rabbit.PaymentBindings) != 1 {
		t.Fatalf("payment listens to exactly one queue")
	}
	pb := rabbit.PaymentBindings[0]
	if pb.RoutingKey != rabbit.KeyInventoryReserved {
		t.Fatalf("payment must only see reserved events, got %s", pb.RoutingKey)
	}

	var orderSeesInventoryFailedOnly bool
	for _, b := range rabbit.OrderBindings {
		if b.Exchange == rabbit.ExchangeInventory {
			orderSeesInventoryFailedOnly = b.RoutingKey == rabbit.KeyInventoryFailed
		}
	}
	if !orderSeesInventoryFailedOnly {
		t.Fatalf("order must bind inventory exchange to inventory.failed only")
	}

	for _, b := range rabbit.InventoryBindings {
		if b.Exchange != rabbit.ExchangeOrder && b.Exchange != rabbit.ExchangePayment {
			t.Fatalf("inventory must listen to order and payment exchanges, got %s", b.Exchange)
		}
	}
}
