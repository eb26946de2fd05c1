package rabbit

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

const (
	dialAttempts = 5
)

// Client оборачивает AMQP-подключение и канал сервиса.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *log.Entry
}

// Dial подключается к брокеру с retry и экспоненциальной паузой между
// попытками. Недоступный брокер на старте — фатальная ошибка процесса.
func Dial(url string) (*Client, error) {
	logger := log.WithField("component", "rabbit")

	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 0; attempt < dialAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		delay := time.Duration(attempt*attempt)*time.Second + time.Second
		logger.WithError(err).WithField("retry_in", delay).Warn("failed to connect to rabbitmq, retrying")
		time.Sleep(delay)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", dialAttempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &Client{conn: conn, channel: channel, logger: logger}, nil
}

// Channel возвращает основной канал клиента.
func (c *Client) Channel() *amqp.Channel {
	return c.channel
}

// NewChannel открывает отдельный канал (для независимых consumer-ов).
func (c *Client) NewChannel() (*amqp.Channel, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is not initialized")
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// Healthy сообщает, живо ли подключение к брокеру.
func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && !c.conn.IsClosed()
}

// Close закрывает канал и подключение.
func (c *Client) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return fmt.Errorf("close channel: %w", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
	}
	return nil
}
