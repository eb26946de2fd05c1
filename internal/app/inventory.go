package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
	"github.com/swaplabs/sagashop/internal/metrics"
	"github.com/swaplabs/sagashop/internal/service/inventory"
	"github.com/swaplabs/sagashop/internal/storage/postgres"
	"github.com/swaplabs/sagashop/internal/transport/httpapi"
	"github.com/swaplabs/sagashop/internal/version"
)

// RunInventoryService собирает и запускает inventory-сервис: резервирование
// по событиям саги и HTTP API каталога.
func RunInventoryService(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "inventory-app")

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

	if err := rabbit.DeclareExchange(client.Channel(), rabbit.ExchangeInventory); err != nil {
		return err
	}
	if err := rabbit.DeclareTopology(client.Channel(), rabbit.InventoryBindings); err != nil {
		return err
	}

	inventoryRepo := postgres.NewInventoryRepository(store)
	idempotency := postgres.NewIdempotencyRepository(store)
	publisher := rabbit.NewPublisher(client)
	sagaMetrics := metrics.NewSagaMetrics()

	handler := inventory.NewEventHandler(inventoryRepo, idempotency, publisher, sagaMetrics, logger.WithField("layer", "handler"))

	consumers := make([]*rabbit.Consumer, 0, 2)
	for _, queue := range []string{rabbit.QueueInventoryOrders, rabbit.QueueInventoryPayments} {
		consumer, err := rabbit.NewConsumer(client, queue, handler.Handle)
		if err != nil {
			return err
		}
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		consumers = append(consumers, consumer)
	}

	healthHandler := newHealthHandler("inventory-service", store, client)
	router := httpapi.NewRouter(healthHandler)
	httpapi.NewInventoryAPI(inventoryRepo, logger.WithField("layer", "http")).RegisterRoutes(router)

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
