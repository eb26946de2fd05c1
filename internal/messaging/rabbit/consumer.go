package rabbit

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

const defaultPrefetch = 8

// EventHandler обрабатывает событие саги. Ошибка означает инфраструктурный
// сбой и ведёт к retry/DLQ; бизнес-отказы handler выражает событиями и
// возвращает nil.
type EventHandler func(ctx context.Context, env Envelope) error

// Consumer читает одну очередь и передаёт конверты в handler.
// Политика доставки: первая ошибка — nack с requeue (одна автоматическая
// повторная попытка), ошибка на redelivery — nack без requeue, и сообщение
// уходит в DLQ очереди. Так poison message не крутится бесконечно, а разовый
// сбой (например, моргнувшая БД) переживается.
type Consumer struct {
	channel  *amqp.Channel
	queue    string
	handler  EventHandler
	logger   *log.Entry
	prefetch int
	wg       sync.WaitGroup
}

// NewConsumer создаёт consumer для очереди на отдельном канале клиента.
func NewConsumer(client *Client, queue string, handler EventHandler) (*Consumer, error) {
	ch, err := client.NewChannel()
	if err != nil {
		return nil, err
	}

	return &Consumer{
		channel:  ch,
		queue:    queue,
		handler:  handler,
		logger:   log.WithFields(log.Fields{"component": "rabbit-consumer", "queue": queue}),
		prefetch: defaultPrefetch,
	}, nil
}

// Start запускает цикл потребления до отмены ctx.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos on %s: %w", c.queue, err)
	}

	deliveries, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack: подтверждаем вручную после обработки
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-deliveries:
				if !ok {
					return
				}
				c.handleDelivery(ctx, msg)
			}
		}
	}()

	c.logger.Info("consumer started")
	return nil
}

// Stop закрывает канал и дожидается завершения цикла.
func (c *Consumer) Stop() error {
	if err := c.channel.Close(); err != nil {
		return fmt.Errorf("close consumer channel: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("consumer stopped")
	return nil
}

func (c *Consumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	env, err := ParseEnvelope(msg.Body)
	if err != nil {
		// Нечитаемое тело ретраить бессмысленно: сразу в DLQ.
		c.logger.WithError(err).Error("malformed event body, dead-lettering")
		_ = msg.Nack(false, false)
		return
	}

	logger := c.logger.WithFields(log.Fields{
		"event_type": env.Type,
		"saga_id":    env.CorrelationID,
		"tenant_id":  env.TenantID,
	})
	logger.Debug("event received")

	if err := c.handler(ctx, env); err != nil {
		if msg.Redelivered {
			logger.WithError(err).Error("event failed after retry, dead-lettering")
			_ = msg.Nack(false, false)
			return
		}
		logger.WithError(err).Warn("event failed, requeueing for one retry")
		_ = msg.Nack(false, true)
		return
	}

	_ = msg.Ack(false)
}
