package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/app"
	"github.com/vladislavdragonenkov/checkout/internal/version"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := app.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("некорректная конфигурация")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr": cfg.HTTPAddr,
		"ops_addr":  cfg.OpsAddr,
		"storage":   cfg.Storage,
		"version":   version.String(),
	}).Info("запускаем checkout-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("checkout-service остановлен")
}
