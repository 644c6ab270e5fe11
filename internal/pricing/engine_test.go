package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func makeCart() domain.Order {
	now := time.Now().UTC()
	order := domain.Order{
		ID:         "order-1",
		CustomerID: "customer-1",
		Status:     domain.OrderStatusCart,
		Currency:   "USD",
		Items: []domain.LineItem{
			{
				ID: "item-1", OrderID: "order-1", VariantID: "variant-1",
				SKU: "sku-1", Name: "Widget",
				Qty: 2, UnitPriceMinor: 1999, CreatedAt: now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	order.RecomputeTotals()
	return order
}

func tenPercentOff() domain.Promotion {
	return domain.Promotion{
		ID: "promo-10", Code: "TEN", Description: "10% off",
		Priority: 10, Level: domain.AdjustmentLevelLine,
		Kind: domain.PromotionKindPercent, PercentBps: 1000,
		CreatedAt: time.Now().UTC(),
	}
}

// Сценарий спецификации: позиция 1999 * 2, скидка 10% -> subtotal 3998,
// корректировка -400 (округление вниз), итог 3598 плюс доставка.
func TestRecompute_TenPercentFloorRounding(t *testing.T) {
	promos := NewMockPromotionService()
	promos.EligiblePromos = []domain.Promotion{tenPercentOff()}
	engine := NewEngine(promos, nil)

	order := makeCart()
	order.Shipments = []domain.Shipment{{
		ID: "ship-1", OrderID: order.ID, LocationID: "loc-1",
		Status: domain.ShipmentStatusPending, CostMinor: 500,
	}}

	if err := engine.Recompute(&order); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	if order.ItemTotalMinor != 3998 {
		t.Fatalf("expected item total 3998, got %d", order.ItemTotalMinor)
	}
	if got := order.Items[0].AdjustmentTotalMinor(); got != -400 {
		t.Fatalf("expected line adjustment -400, got %d", got)
	}
	if order.TotalMinor != 3598+500 {
		t.Fatalf("expected total %d, got %d", 3598+500, order.TotalMinor)
	}
}

func TestRecompute_Idempotent(t *testing.T) {
	promos := NewMockPromotionService()
	promos.EligiblePromos = []domain.Promotion{tenPercentOff()}
	engine := NewEngine(promos, nil)

	order := makeCart()
	for i := 0; i < 3; i++ {
		if err := engine.Recompute(&order); err != nil {
			t.Fatalf("recompute %d failed: %v", i, err)
		}
	}
	if len(order.Items[0].Adjustments) != 1 {
		t.Fatalf("expected exactly one adjustment after repeated recompute, got %d", len(order.Items[0].Adjustments))
	}
}

func TestRecompute_RemovesStaleAndKeepsManual(t *testing.T) {
	promos := NewMockPromotionService()
	promos.EligiblePromos = []domain.Promotion{tenPercentOff()}
	engine := NewEngine(promos, nil)

	order := makeCart()
	// Ручной налог без ссылки на акцию переживает любые пересчёты.
	order.Adjustments = append(order.Adjustments, domain.Adjustment{
		ID: "tax-1", OrderID: order.ID, Level: domain.AdjustmentLevelOrder,
		Label: "VAT", AmountMinor: 300, Eligible: true,
	})
	if err := engine.Recompute(&order); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	// Акция перестала быть применимой: её корректировки должны исчезнуть.
	promos.EligiblePromos = nil
	if err := engine.Recompute(&order); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if len(order.Items[0].Adjustments) != 0 {
		t.Fatalf("stale promotion adjustments must be removed, got %v", order.Items[0].Adjustments)
	}
	if len(order.Adjustments) != 1 || order.Adjustments[0].ID != "tax-1" {
		t.Fatalf("manual tax must survive, got %v", order.Adjustments)
	}
	if order.TotalMinor != 3998+300 {
		t.Fatalf("expected total %d, got %d", 3998+300, order.TotalMinor)
	}
}

func TestApplyPromotion_ReplacesPrevious(t *testing.T) {
	promos := NewMockPromotionService()
	promoA := tenPercentOff()
	promoB := domain.Promotion{
		ID: "promo-fix", Code: "FIVE", Description: "500 off order",
		Priority: 20, Level: domain.AdjustmentLevelOrder,
		Kind: domain.PromotionKindFixed, AmountMinor: 500,
		CreatedAt: time.Now().UTC(),
	}
	promos.Catalog["TEN"] = promoA
	promos.Catalog["FIVE"] = promoB
	engine := NewEngine(promos, nil)

	order := makeCart()
	order.Adjustments = append(order.Adjustments, domain.Adjustment{
		ID: "tax-1", OrderID: order.ID, Level: domain.AdjustmentLevelOrder,
		Label: "VAT", AmountMinor: 300, Eligible: true,
	})
	order.RecomputeTotals()

	actor := domain.Actor{ID: "customer-1", Kind: domain.ActorKindCustomer}
	if err := engine.ApplyPromotion(actor, &order, "TEN"); err != nil {
		t.Fatalf("apply TEN failed: %v", err)
	}
	if err := engine.ApplyPromotion(actor, &order, "FIVE"); err != nil {
		t.Fatalf("apply FIVE failed: %v", err)
	}

	// Ни одной корректировки от A, ровно одна от B, налог на месте.
	for _, adj := range order.Items[0].Adjustments {
		if adj.PromotionID == promoA.ID {
			t.Fatalf("promotion A adjustments must be removed: %+v", adj)
		}
	}
	var fromB, manual int
	for _, adj := range order.Adjustments {
		switch {
		case adj.PromotionID == promoB.ID:
			fromB++
		case !adj.PromotionSourced():
			manual++
		}
	}
	if fromB != 1 {
		t.Fatalf("expected exactly one adjustment from promotion B, got %d", fromB)
	}
	if manual != 1 {
		t.Fatalf("manual tax must survive promotion replacement, got %d", manual)
	}
	if order.TotalMinor != 3998-500+300 {
		t.Fatalf("expected total %d, got %d", 3998-500+300, order.TotalMinor)
	}
}

func TestApplyPromotion_Failures(t *testing.T) {
	promos := NewMockPromotionService()
	expired := tenPercentOff()
	expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	promos.Catalog["OLD"] = expired
	engine := NewEngine(promos, nil)

	order := makeCart()
	before := order.TotalMinor
	actor := domain.Actor{ID: "customer-1", Kind: domain.ActorKindCustomer}

	if err := engine.ApplyPromotion(actor, &order, "NOPE"); !errors.Is(err, domain.ErrPromotionNotFound) {
		t.Fatalf("expected ErrPromotionNotFound, got %v", err)
	}
	if err := engine.ApplyPromotion(actor, &order, "OLD"); !errors.Is(err, domain.ErrPromotionExpired) {
		t.Fatalf("expected ErrPromotionExpired, got %v", err)
	}

	// Заказ не изменился ни после одного из отказов.
	if order.TotalMinor != before || len(order.Adjustments) != 0 {
		t.Fatalf("order must be unchanged after failed apply")
	}
}

func TestSelectActive_ExclusiveWins(t *testing.T) {
	now := time.Now().UTC()
	exclusive := domain.Promotion{ID: "a", Priority: 1, Combinable: false, CreatedAt: now}
	combinable1 := domain.Promotion{ID: "b", Priority: 2, Combinable: true, CreatedAt: now}
	combinable2 := domain.Promotion{ID: "c", Priority: 3, Combinable: true, CreatedAt: now}

	active := selectActive([]domain.Promotion{combinable1, exclusive, combinable2})
	if len(active) != 1 || active[0].ID != "a" {
		t.Fatalf("highest-priority exclusive must win alone, got %v", active)
	}

	// Без эксклюзивной — складываются все combinable.
	active = selectActive([]domain.Promotion{combinable2, combinable1})
	if len(active) != 2 || active[0].ID != "b" || active[1].ID != "c" {
		t.Fatalf("combinable promotions must stack in priority order, got %v", active)
	}

	// Эксклюзивная с низким приоритетом пропускается, когда combinable уже выбраны.
	lowExclusive := domain.Promotion{ID: "d", Priority: 5, Combinable: false, CreatedAt: now}
	active = selectActive([]domain.Promotion{combinable1, lowExclusive})
	if len(active) != 1 || active[0].ID != "b" {
		t.Fatalf("expected combinable only, got %v", active)
	}
}

func TestFloorDiv(t *testing.T) {
	cases := []struct {
		a, b, want int64
	}{
		{-3998000, 10000, -400},
		{-4000000, 10000, -400},
		{-1, 10000, -1},
		{3998000, 10000, 399},
		{0, 10000, 0},
	}
	for _, tc := range cases {
		if got := floorDiv(tc.a, tc.b); got != tc.want {
			t.Errorf("floorDiv(%d, %d): expected %d, got %d", tc.a, tc.b, tc.want, got)
		}
	}
}
