package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/app"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	app.SetupLogging()

	cfg := app.ReadConfig(app.DefaultConfig(":8082", ":9092"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
	}).Info("запускаем inventory-service")

	if err := app.RunInventoryService(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("сервис завершился с ошибкой")
	}

	log.Info("inventory-service остановлен")
}
