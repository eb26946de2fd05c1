package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/swaplabs/sagashop/internal/health"
	"github.com/swaplabs/sagashop/internal/messaging/rabbit"
	"github.com/swaplabs/sagashop/internal/metrics"
	"github.com/swaplabs/sagashop/internal/service/order"
	"github.com/swaplabs/sagashop/internal/service/reaper"
	"github.com/swaplabs/sagashop/internal/storage/postgres"
	"github.com/swaplabs/sagashop/internal/transport/httpapi"
	"github.com/swaplabs/sagashop/internal/version"
)

// RunOrderService собирает и запускает order-сервис: HTTP API заказов,
// consumer-ы исходов саги и reaper зависших заказов.
func RunOrderService(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "order-app")

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

	// Сервис заявляет свой exchange для публикаций и очереди, которые потребляет.
	if err := rabbit.DeclareExchange(client.Channel(), rabbit.ExchangeOrder); err != nil {
		return err
	}
	if err := rabbit.DeclareTopology(client.Channel(), rabbit.OrderBindings); err != nil {
		return err
	}

	orders := postgres.NewOrderRepository(store)
	idempotency := postgres.NewIdempotencyRepository(store)
	publisher := rabbit.NewPublisher(client)
	sagaMetrics := metrics.NewSagaMetrics()

	service := order.NewService(orders, publisher, sagaMetrics, logger.WithField("layer", "service"))
	handler := order.NewEventHandler(orders, idempotency, sagaMetrics, logger.WithField("layer", "handler"))

	consumers := make([]*rabbit.Consumer, 0, 2)
	for _, queue := range []string{rabbit.QueueOrderPayments, rabbit.QueueOrderInventory} {
		consumer, err := rabbit.NewConsumer(client, queue, handler.Handle)
		if err != nil {
			return err
		}
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		consumers = append(consumers, consumer)
	}

	reapWorker := reaper.NewWorker(orders, publisher,
		reaper.WithInterval(cfg.ReapInterval),
		reaper.WithTimeout(cfg.OrderTimeout),
		reaper.WithLogger(logger.WithField("layer", "reaper")),
	)
	go reapWorker.Run(ctx)

	healthHandler := newHealthHandler("order-service", store, client)
	router := httpapi.NewRouter(healthHandler)
	httpapi.NewOrderAPI(service, logger.WithField("layer", "http")).RegisterRoutes(router)

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

func stopConsumers(consumers []*rabbit.Consumer, logger *log.Entry) {
	for _, consumer := range consumers {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Warn("consumer stop failed")
		}
	}
}

func newHealthHandler(service string, store *postgres.Store, client *rabbit.Client) *healthcheck.Handler {
	v, _, _ := version.Info()
	handler := healthcheck.NewHandler(service, v)
	handler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()
		return store.Ping(ctx)
	}))
	handler.RegisterChecker("rabbitmq", healthcheck.NewSimpleChecker("rabbitmq", func() error {
		if !client.Healthy() {
			return errBrokerUnavailable
		}
		return nil
	}))
	return handler
}
