package rabbit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/swaplabs/sagashop/internal/domain"
)

// EventType определяет тип события саги.
type EventType string

const (
	// Order события
	EventTypeOrderCreated   EventType = "ORDER_CREATED"
	EventTypeOrderCancelled EventType = "ORDER_CANCELLED"

	// Inventory события
	EventTypeInventoryReserved EventType = "INVENTORY_RESERVED"
	EventTypeInventoryFailed   EventType = "INVENTORY_FAILED"

	// Payment события
	EventTypePaymentSuccess EventType = "PAYMENT_SUCCESS"
	EventTypePaymentFailed  EventType = "PAYMENT_FAILED"
)

// Exchanges: каждый домен владеет своим topic exchange.
const (
	ExchangeOrder     = "order-exchange"
	ExchangeInventory = "inventory-exchange"
	ExchangePayment   = "payment-exchange"
)

// Routing keys.
const (
	KeyOrderCreated      = "order.created"
	KeyOrderCancelled    = "order.cancelled"
	KeyInventoryReserved = "inventory.reserved"
	KeyInventoryFailed   = "inventory.failed"
	KeyPaymentSuccess    = "payment.success"
	KeyPaymentFailed     = "payment.failed"
)

// Queues: одна очередь потребления на сервис и exchange.
// DLQ каждой очереди — "<queue>.dlq".
const (
	QueueInventoryOrders   = "inventory.order-events"
	QueueInventoryPayments = "inventory.payment-events"
	QueuePaymentInventory  = "payment.inventory-events"
	QueueOrderPayments     = "order.payment-events"
	QueueOrderInventory    = "order.inventory-events"

	DLQSuffix = ".dlq"
)

// Envelope — общий конверт всех межсервисных сообщений. CorrelationID равен
// sagaId заказа и протягивается через все события одной саги.
type Envelope struct {
	Type          EventType       `json:"type"`
	CorrelationID string          `json:"correlationId"`
	TenantID      string          `json:"tenantId"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
}

// OrderCancelledData — payload события ORDER_CANCELLED.
type OrderCancelledData struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// InventoryReservedData — payload события INVENTORY_RESERVED.
// Behaviour-флаг протягивается до платёжного симулятора.
type InventoryReservedData struct {
	OrderID          string             `json:"orderId"`
	Items            []domain.OrderItem `json:"items"`
	PaymentBehaviour domain.Behaviour   `json:"paymentBehaviour,omitempty"`
}

// InventoryFailedData — payload события INVENTORY_FAILED.
type InventoryFailedData struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// PaymentSuccessData — payload события PAYMENT_SUCCESS.
type PaymentSuccessData struct {
	OrderID       string `json:"orderId"`
	AmountMinor   int64  `json:"amount"`
	TransactionID string `json:"transactionId"`
}

// PaymentFailedData — payload события PAYMENT_FAILED.
type PaymentFailedData struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// NewEnvelope собирает конверт события, сериализуя payload.
func NewEnvelope(eventType EventType, sagaID, tenantID string, data any) (Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		Type:          eventType,
		CorrelationID: sagaID,
		TenantID:      tenantID,
		Timestamp:     time.Now().UTC(),
		Data:          payload,
	}, nil
}

// DecodeData разбирает payload конверта в переданную структуру.
func (e Envelope) DecodeData(into any) error {
	if err := json.Unmarshal(e.Data, into); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ParseEnvelope парсит конверт из тела сообщения.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	return env, nil
}

// RoutingKeyFor возвращает routing key и exchange для типа события.
func RoutingKeyFor(eventType EventType) (exchange, key string, err error) {
	switch eventType {
	case EventTypeOrderCreated:
		return ExchangeOrder, KeyOrderCreated, nil
	case EventTypeOrderCancelled:
		return ExchangeOrder, KeyOrderCancelled, nil
	case EventTypeInventoryReserved:
		return ExchangeInventory, KeyInventoryReserved, nil
	case EventTypeInventoryFailed:
		return ExchangeInventory, KeyInventoryFailed, nil
	case EventTypePaymentSuccess:
		return ExchangePayment, KeyPaymentSuccess, nil
	case EventTypePaymentFailed:
		return ExchangePayment, KeyPaymentFailed, nil
	default:
		return "", "", fmt.Errorf("no routing for event type %q", eventType)
	}
}
