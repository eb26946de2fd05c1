package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
	"github.com/swaplabs/sagashop/internal/metrics"
	"github.com/swaplabs/sagashop/internal/service/payment"
	"github.com/swaplabs/sagashop/internal/storage/postgres"
	"github.com/swaplabs/sagashop/internal/transport/httpapi"
	"github.com/swaplabs/sagashop/internal/version"
)

// RunPaymentService собирает и запускает payment-сервис: симулятор платежей
// по INVENTORY_RESERVED и read-only HTTP API.
func RunPaymentService(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "payment-app")

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client, err := rabbit.Dial(cfg.AMQPURL)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := rabbit.DeclareExchange(client.Channel(), rabbit.ExchangePayment); err != nil {
		return err
	}
	if err := rabbit.DeclareTopology(client.Channel(), rabbit.PaymentBindings); err != nil {
		return err
	}

	payments := postgres.NewPaymentRepository(store)
	idempotency := postgres.NewIdempotencyRepository(store)
	publisher := rabbit.NewPublisher(client)
	sagaMetrics := metrics.NewSagaMetrics()

	handler := payment.NewEventHandler(payments, idempotency, publisher, sagaMetrics,
		payment.WithDelay(cfg.PaymentDelay),
		payment.WithLogger(logger.WithField("layer", "handler")),
	)

	consumer, err := rabbit.NewConsumer(client, rabbit.QueuePaymentInventory, handler.Handle)
	if err != nil {
		return err
	}
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	consumers := []*rabbit.Consumer{consumer}

	healthHandler := newHealthHandler("payment-service", store, client)
	router := httpapi.NewRouter(healthHandler)
	httpapi.NewPaymentAPI(payments, logger.WithField("layer", "http")).RegisterRoutes(router)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger)

	errCh := make(chan error, 1)
	apiSrv := startAPIServer(cfg.HTTPAddr, router, logger, errCh)

	logger.Info(version.String())

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopConsumers(consumers, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		stopConsumers(consumers, logger)
		return err
	}
}
