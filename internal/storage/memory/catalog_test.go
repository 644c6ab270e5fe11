package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestCatalog(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog()
	catalog.Put(domain.Variant{ID: "variant-1", SKU: "sku-1", Name: "Widget", PriceMinor: 1999, Currency: "USD"})

	variant, err := catalog.Variant("variant-1")
	if err != nil {
		t.Fatal(err)
	}
	if variant.PriceMinor != 1999 {
		t.Fatalf("unexpected price %d", variant.PriceMinor)
	}

	if _, err := catalog.Variant("missing"); !errors.Is(err, domain.ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}
}

func TestPromotionCatalog_EligibleSkipsExpired(t *testing.T) {
	t.Parallel()

	promos := NewPromotionCatalog()
	promos.Put(domain.Promotion{
		ID: "promo-1", Code: "SAVE10", Kind: domain.PromotionKindPercent,
		Level: domain.AdjustmentLevelOrder, PercentBps: 1000,
	})
	promos.Put(domain.Promotion{
		ID: "promo-2", Code: "OLD", Kind: domain.PromotionKindFixed,
		Level: domain.AdjustmentLevelOrder, AmountMinor: 500,
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	})

	eligible, err := promos.Eligible(domain.Order{})
	if err != nil {
		t.Fatal(err)
	}
	if len(eligible) != 1 || eligible[0].Code != "SAVE10" {
		t.Fatalf("expected only SAVE10, got %v", eligible)
	}

	// Истёкшая акция остаётся доступной для Lookup: отказ по сроку
	// формирует ядро ценообразования.
	if _, err := promos.Lookup("OLD"); err != nil {
		t.Fatalf("lookup of expired promo failed: %v", err)
	}
	if _, err := promos.Lookup("NOPE"); !errors.Is(err, domain.ErrPromotionNotFound) {
		t.Fatalf("expected ErrPromotionNotFound, got %v", err)
	}
}
