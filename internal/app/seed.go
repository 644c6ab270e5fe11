package app

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/payments"
)

// methodWriter объединяет реализации PaymentMethodRepository, умеющие
// сохранять способы оплаты.
type methodWriter interface {
	Put(domain.PaymentMethod) error
}

// SeedDemoData наполняет memory-бэкенд демо-данными: каталог, склады,
// способ оплаты и промоакция. Вызывается только в development-окружении.
func (d *Dependencies) SeedDemoData() error {
	d.Catalog.Put(domain.Variant{
		ID: "variant-widget", SKU: "WGT-001", Name: "Widget", PriceMinor: 1999, Currency: "USD",
	})
	d.Catalog.Put(domain.Variant{
		ID: "variant-gadget", SKU: "GDT-001", Name: "Gadget", PriceMinor: 4999, Currency: "USD",
	})

	d.Promos.Put(domain.Promotion{
		ID: "promo-save10", Code: "SAVE10", Description: "10% off",
		Priority: 10, Combinable: true,
		Level: domain.AdjustmentLevelOrder, Kind: domain.PromotionKindPercent,
		PercentBps: 1000, CreatedAt: time.Now().UTC(),
	})

	now := time.Now().UTC()
	seedActor := domain.Actor{ID: "seed", Kind: domain.ActorKindSystem}
	type stockSeed struct {
		location string
		rank     int32
		variant  string
		onHand   int32
	}
	seeds := []stockSeed{
		{"warehouse-east", 1, "variant-widget", 50},
		{"warehouse-east", 1, "variant-gadget", 20},
		{"warehouse-west", 2, "variant-widget", 30},
	}
	locations := map[string]int32{}
	for _, seed := range seeds {
		if _, done := locations[seed.location]; !done {
			locations[seed.location] = seed.rank
			if adder, ok := d.Stock.(interface{ AddLocation(domain.StockLocation) }); ok {
				adder.AddLocation(domain.StockLocation{
					ID: seed.location, Name: seed.location,
					ProximityRank: seed.rank, Active: true,
				})
			}
		}
		err := d.Stock.Create(domain.StockItem{
			ID:        seed.location + "/" + seed.variant,
			VariantID: seed.variant, LocationID: seed.location,
			CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("seed stock %s: %w", seed.location, err)
		}
		// Наличие заводится приёмкой через ledger, а не прямой записью:
		// журнал движений обязан сходиться с onHand с первого дня.
		if _, err := d.Ledger.Adjust(seedActor, seed.variant, seed.location, seed.onHand, domain.MovementReasonReceive); err != nil {
			return fmt.Errorf("receive stock %s at %s: %w", seed.variant, seed.location, err)
		}
	}

	sealed, err := payments.SealCredentials(domain.GatewayCredentials{
		MerchantID: "demo-merchant", SecretKey: "sk_demo", WebhookSecret: "whsec_demo",
	}, d.SealKey)
	if err != nil {
		return fmt.Errorf("seal demo credentials: %w", err)
	}

	writer, ok := d.Methods.(methodWriter)
	if !ok {
		return fmt.Errorf("payment method repository does not support seeding")
	}
	if err := writer.Put(domain.PaymentMethod{
		Code: "card", Provider: "mockpay", AutoCapture: false, SealedCredentials: sealed,
	}); err != nil {
		return fmt.Errorf("seed payment method: %w", err)
	}
	if err := writer.Put(domain.PaymentMethod{
		Code: "cod", Provider: "mockpay", DeferredCapture: true, SealedCredentials: sealed,
	}); err != nil {
		return fmt.Errorf("seed payment method: %w", err)
	}

	d.Logger.Info("demo data seeded")
	return nil
}
