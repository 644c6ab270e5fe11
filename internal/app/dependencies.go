package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/fulfillment"
	"github.com/vladislavdragonenkov/checkout/internal/inventory"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
	"github.com/vladislavdragonenkov/checkout/internal/payments"
	"github.com/vladislavdragonenkov/checkout/internal/pricing"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
	"github.com/vladislavdragonenkov/checkout/internal/storage/postgres"
)

// Dependencies содержит собранный граф зависимостей приложения.
type Dependencies struct {
	Engine  *checkout.Engine
	Outbox  domain.OutboxRepository
	Store   *postgres.Store // nil для memory-бэкенда
	Stock   domain.StockRepository
	Ledger  *inventory.Ledger
	Methods domain.PaymentMethodRepository
	Catalog *memory.Catalog
	Promos  *memory.PromotionCatalog
	SealKey [32]byte
	Logger  *log.Entry
}

// NewDependencies строит граф зависимостей по конфигурации.
// NOTE: каталог товаров и справочник акций пока in-memory; в production
// их заменяют клиенты каталожного и промо-сервисов.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	var (
		orders   domain.OrderRepository
		stock    domain.StockRepository
		outbox   domain.OutboxRepository
		timeline domain.TimelineRepository
		webhooks domain.WebhookRepository
		methods  domain.PaymentMethodRepository
		store    *postgres.Store
	)

	switch cfg.Storage {
	case "postgres":
		var err error
		store, err = postgres.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		orders = postgres.NewOrderRepository(store)
		stock = postgres.NewStockRepository(store)
		outbox = postgres.NewOutboxRepository(store)
		timeline = postgres.NewTimelineRepository(store)
		webhooks = postgres.NewWebhookRepository(store)
		methods = postgres.NewPaymentMethodRepository(store)
		logger.Info("postgres storage initialized")
	default:
		orders = memory.NewOrderRepository()
		stock = memory.NewStockRepository()
		outbox = memory.NewOutboxRepository()
		timeline = memory.NewTimelineRepository()
		webhooks = memory.NewWebhookRepository()
		methods = memory.NewPaymentMethodRepository()
		logger.Info("in-memory storage initialized")
	}

	checkoutMetrics := metrics.NewCheckoutMetrics()

	ledger := inventory.NewLedger(stock, logger.WithField("component", "inventory"))
	planner := fulfillment.NewPlanner(
		stock, ledger, cfg.ShipmentCostMinor,
		fulfillment.StrategyOptions{},
		logger.WithField("component", "fulfillment"),
	)
	if _, err := fulfillment.ForName(cfg.FulfillmentStrategy, fulfillment.StrategyOptions{}); err != nil {
		return nil, fmt.Errorf("fulfillment strategy: %w", err)
	}

	catalog := memory.NewCatalog()
	promos := memory.NewPromotionCatalog()
	pricingEngine := pricing.NewEngine(promos, logger.WithField("component", "pricing"))

	sealKey := payments.KeyFromSecret(cfg.PaymentSealSecret)
	registry := payments.NewRegistry()
	// NOTE: в production сюда регистрируются реальные адаптеры провайдеров.
	registry.Register("mockpay", &payments.MockGateway{})
	coordinator := payments.NewCoordinator(
		methods, webhooks, registry, sealKey,
		checkoutMetrics, logger.WithField("component", "payments"),
	)

	engine := checkout.NewEngine(checkout.Deps{
		Orders:   orders,
		Outbox:   outbox,
		Timeline: timeline,
		Catalog:  catalog,
		Pricing:  pricingEngine,
		Planner:  planner,
		Ledger:   ledger,
		Payments: coordinator,
		Metrics:  checkoutMetrics,
		Logger:   logger.WithField("component", "checkout"),
	})

	return &Dependencies{
		Engine:  engine,
		Outbox:  outbox,
		Store:   store,
		Stock:   stock,
		Ledger:  ledger,
		Methods: methods,
		Catalog: catalog,
		Promos:  promos,
		SealKey: sealKey,
		Logger:  logger,
	}, nil
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() error {
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}
