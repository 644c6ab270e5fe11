package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/checkout/internal/health"
	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/checkout/internal/service/outbox"
	transporthttp "github.com/vladislavdragonenkov/checkout/internal/transport/http"
	"github.com/vladislavdragonenkov/checkout/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run запускает сервис и блокируется до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	if cfg.Environment == "development" && cfg.Storage == "memory" {
		if err := deps.SeedDemoData(); err != nil {
			return err
		}
	}

	// Kafka опционален: без брокеров события остаются в outbox.
	var kafkaProducer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			kafkaProducer = producer
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		}
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if kafkaProducer != nil {
		worker := outbox.NewWorker(
			deps.Outbox,
			kafka.NewOutboxPublisher(kafkaProducer),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
		)
		go worker.Run(workerCtx)
	}

	healthHandler := healthcheck.NewHandler(version.String())
	if deps.Store != nil {
		store := deps.Store
		healthHandler.Register("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		})
	}

	opsSrv := startOpsServer(ctx, cfg.OpsAddr, logger, healthHandler)

	handler := transporthttp.NewHandler(deps.Engine, cfg.FulfillmentStrategy, logger.WithField("component", "http-handler"))
	router := transporthttp.NewRouter(handler, logger.WithField("component", "http"), cfg.Environment == "production")
	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(opsSrv, logger)
		stopWorker()
		closeProducer(kafkaProducer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(opsSrv, logger)
		stopWorker()
		closeProducer(kafkaProducer, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startOpsServer поднимает служебный листенер: метрики и health-пробы.
func startOpsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.Readiness)
	mux.HandleFunc("/livez", healthcheck.Liveness)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("ops server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

func closeProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
