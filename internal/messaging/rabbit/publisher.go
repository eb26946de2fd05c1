package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// EventPublisher публикует событие саги. Publish — fire-and-forget с
// persistent delivery; надёжность доставки обеспечивает брокер.
type EventPublisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Publisher — AMQP-реализация EventPublisher.
type Publisher struct {
	channel *amqp.Channel
	logger  *log.Entry
}

// NewPublisher создаёт publisher поверх канала клиента.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{
		channel: client.Channel(),
		logger:  log.WithField("component", "rabbit-publisher"),
	}
}

// Publish сериализует конверт и отправляет его в exchange, определяемый типом
// события.
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	exchange, key, err := RoutingKeyFor(env.Type)
	if err != nil {
		return err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := p.channel.PublishWithContext(
		ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now(),
			CorrelationId: env.CorrelationID,
			Body:          body,
		},
	); err != nil {
		return fmt.Errorf("publish %s to %s (%s): %w", env.Type, exchange, key, err)
	}

	p.logger.WithFields(log.Fields{
		"event_type":  env.Type,
		"exchange":    exchange,
		"routing_key": key,
		"saga_id":     env.CorrelationID,
	}).Debug("event published")

	return nil
}

var _ EventPublisher = (*Publisher)(nil)
