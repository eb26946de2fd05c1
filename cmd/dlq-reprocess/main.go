package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
)

const defaultReplayLimit = 100

type config struct {
	amqpURL string
	queue   string
	limit   int
	execute bool
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func readConfig() (config, error) {
	var cfg config

	flag.StringVar(&cfg.amqpURL, "url", "", "AMQP URL (fallback: SAGA_AMQP_URL)")
	flag.StringVar(&cfg.queue, "queue", "", "DLQ to drain, e.g. inventory.order-events.dlq")
	flag.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan/replay")
	flag.BoolVar(&cfg.execute, "execute", false, "execute replay; default is dry-run")
	flag.Parse()

	if strings.TrimSpace(cfg.amqpURL) == "" {
		cfg.amqpURL = strings.TrimSpace(os.Getenv("SAGA_AMQP_URL"))
	}
	if cfg.amqpURL == "" {
		return config{}, fmt.Errorf("amqp url is required (-url or SAGA_AMQP_URL)")
	}
	if strings.TrimSpace(cfg.queue) == "" {
		return config{}, fmt.Errorf("queue is required")
	}
	if !strings.HasSuffix(cfg.queue, rabbit.DLQSuffix) {
		return config{}, fmt.Errorf("queue must be a dead-letter queue (suffix %s)", rabbit.DLQSuffix)
	}
	if cfg.limit <= 0 {
		return config{}, fmt.Errorf("limit must be > 0")
	}

	return config{
		amqpURL: cfg.amqpURL,
		queue:   cfg.queue,
		limit:   cfg.limit,
		execute: cfg.execute,
	}, nil
}

// run перечитывает DLQ через basic.get. В dry-run сообщения возвращаются в
// очередь; в execute каждое читаемое событие публикуется в родной exchange
// по своему типу и снимается с DLQ.
func run(ctx context.Context, cfg config) error {
	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"queue": cfg.queue,
		"limit": cfg.limit,
		"mode":  mode,
	}).Info("starting dlq replay")

	client, err := rabbit.Dial(cfg.amqpURL)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ch := client.Channel()
	publisher := rabbit.NewPublisher(client)

	// В dry-run прочитанные сообщения держатся неподтверждёнными до конца
	// прохода и возвращаются в очередь одним nack: иначе requeue подставлял
	// бы одно и то же сообщение под следующий Get.
	var processed, replayed, skipped int
	var lastTag uint64
	for processed < cfg.limit {
		msg, ok, err := ch.Get(cfg.queue, false)
		if err != nil {
			return fmt.Errorf("get from %s: %w", cfg.queue, err)
		}
		if !ok {
			break
		}
		processed++
		lastTag = msg.DeliveryTag

		env, err := rabbit.ParseEnvelope(msg.Body)
		if err != nil {
			// Нечитаемое тело остаётся в DLQ для ручного разбора.
			skipped++
			log.WithError(err).WithField("delivery_tag", msg.DeliveryTag).Warn("skip malformed dlq message")
			continue
		}

		if !cfg.execute {
			log.WithFields(log.Fields{
				"event_type": env.Type,
				"saga_id":    env.CorrelationID,
				"tenant_id":  env.TenantID,
				"timestamp":  env.Timestamp.Format(time.RFC3339),
			}).Info("dlq replay candidate")
			replayed++
			continue
		}

		if err := publisher.Publish(ctx, env); err != nil {
			_ = ch.Nack(lastTag, true, true)
			return fmt.Errorf("replay %s: %w", env.Type, err)
		}
		if err := msg.Ack(false); err != nil {
			return fmt.Errorf("ack replayed message: %w", err)
		}
		replayed++
	}

	// Возвращаем в очередь всё неподтверждённое: в dry-run это весь скан,
	// в execute — только нечитаемые сообщения (реплеи уже подтверждены).
	if lastTag > 0 && (!cfg.execute || skipped > 0) {
		if err := ch.Nack(lastTag, true, true); err != nil {
			return fmt.Errorf("requeue scanned messages: %w", err)
		}
	}

	log.WithFields(log.Fields{
		"mode":      mode,
		"processed": processed,
		"replayed":  replayed,
		"skipped":   skipped,
	}).Info("dlq replay finished")

	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
