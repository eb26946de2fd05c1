package rabbit

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Binding связывает очередь потребления с exchange по routing key.
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
}

// Пер-сервисные таблицы биндингов. Маршрутизация фиксирует, кто что видит:
// payment подписан только на inventory.reserved, order — только на
// inventory.failed, поэтому payment никогда не получит несостоявшийся резерв.
var (
	InventoryBindings = []Binding{
		{Queue: QueueInventoryOrders, Exchange: ExchangeOrder, RoutingKey: "order.*"},
		{Queue: QueueInventoryPayments, Exchange: ExchangePayment, RoutingKey: "payment.*"},
	}
	PaymentBindings = []Binding{
		{Queue: QueuePaymentInventory, Exchange: ExchangeInventory, RoutingKey: KeyInventoryReserved},
	}
	OrderBindings = []Binding{
		{Queue: QueueOrderPayments, Exchange: ExchangePayment, RoutingKey: "payment.*"},
		{Queue: QueueOrderInventory, Exchange: ExchangeInventory, RoutingKey: KeyInventoryFailed},
	}
)

// DeclareTopology декларирует exchange-и, очереди и DLQ для набора биндингов.
// Все объекты durable; повторная декларация идемпотентна, поэтому каждый
// сервис заявляет всё, что потребляет.
func DeclareTopology(ch *amqp.Channel, bindings []Binding) error {
	declared := make(map[string]bool)

	for _, b := range bindings {
		if !declared[b.Exchange] {
			if err := ch.ExchangeDeclare(
				b.Exchange,
				"topic",
				true,  // durable
				false, // auto-delete
				false, // internal
				false, // no-wait
				nil,
			); err != nil {
				return fmt.Errorf("declare exchange %s: %w", b.Exchange, err)
			}
			declared[b.Exchange] = true
		}

		dlq := b.Queue + DLQSuffix
		// DLQ без собственного dead-letter, чтобы не зациклить маршрутизацию.
		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dlq %s: %w", dlq, err)
		}

		args := amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlq,
		}
		if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.Queue, err)
		}

		if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s (%s): %w", b.Queue, b.Exchange, b.RoutingKey, err)
		}
	}

	return nil
}

// DeclareExchange декларирует один topic exchange (для publish-only сторон).
func DeclareExchange(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}
