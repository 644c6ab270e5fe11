package fulfillment_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/fulfillment"
	"github.com/vladislavdragonenkov/checkout/internal/inventory"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

var planActor = domain.Actor{ID: "admin-1", Kind: domain.ActorKindAdmin}

func setup(t *testing.T, stocks map[string]int32) (*fulfillment.Planner, domain.StockRepository) {
	t.Helper()
	repo := memory.NewStockRepository()
	rank := int32(1)
	for loc, onHand := range stocks {
		repo.AddLocation(domain.StockLocation{ID: loc, Name: loc, ProximityRank: rank, Active: true})
		rank++
		if err := repo.Create(domain.StockItem{
			ID: "stock-" + loc, VariantID: "variant-1", LocationID: loc,
			OnHand: onHand, CreatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("seed stock: %v", err)
		}
	}
	ledger := inventory.NewLedger(repo, nil)
	planner := fulfillment.NewPlanner(repo, ledger, 500, fulfillment.StrategyOptions{}, nil)
	return planner, repo
}

func makePlannable(qty int32) domain.Order {
	now := time.Now().UTC()
	order := domain.Order{
		ID: "order-1", CustomerID: "customer-1",
		Status: domain.OrderStatusAddressSet, Currency: "USD",
		Items: []domain.LineItem{{
			ID: "item-1", OrderID: "order-1", VariantID: "variant-1",
			SKU: "sku-1", Name: "Widget", Qty: qty, UnitPriceMinor: 1000,
			CreatedAt: now,
		}},
		CreatedAt: now, UpdatedAt: now,
	}
	order.RecomputeTotals()
	return order
}

// Сценарий спецификации: склады с остатками 3 и 2, заказ на 4 единицы ->
// две отгрузки: 3 с большего склада и 1 с меньшего.
func TestPlan_SplitsAcrossLocations(t *testing.T) {
	planner, repo := setup(t, map[string]int32{"loc-a": 3, "loc-b": 2})
	order := makePlannable(4)

	if _, err := planner.Plan(planActor, &order, ""); err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	if len(order.Shipments) != 2 {
		t.Fatalf("expected 2 shipments, got %d", len(order.Shipments))
	}
	got := map[string]int32{}
	for i := range order.Shipments {
		s := &order.Shipments[i]
		got[s.LocationID] = s.Qty("variant-1")
	}
	if got["loc-a"] != 3 || got["loc-b"] != 1 {
		t.Fatalf("expected 3 from loc-a and 1 from loc-b, got %v", got)
	}

	itemA, _ := repo.ByVariantAndLocation("variant-1", "loc-a")
	itemB, _ := repo.ByVariantAndLocation("variant-1", "loc-b")
	if itemA.Reserved != 3 || itemB.Reserved != 1 {
		t.Fatalf("expected reservations 3/1, got %d/%d", itemA.Reserved, itemB.Reserved)
	}
}

func TestPlan_SingleLocationPreferred(t *testing.T) {
	planner, _ := setup(t, map[string]int32{"loc-a": 2, "loc-b": 10})
	order := makePlannable(4)

	if _, err := planner.Plan(planActor, &order, ""); err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(order.Shipments) != 1 || order.Shipments[0].LocationID != "loc-b" {
		t.Fatalf("expected one shipment from loc-b, got %+v", order.Shipments)
	}
}

func TestPlan_Idempotent(t *testing.T) {
	planner, repo := setup(t, map[string]int32{"loc-a": 10})
	order := makePlannable(4)

	if _, err := planner.Plan(planActor, &order, ""); err != nil {
		t.Fatalf("first plan failed: %v", err)
	}
	if _, err := planner.Plan(planActor, &order, ""); err != nil {
		t.Fatalf("second plan failed: %v", err)
	}

	if len(order.Shipments) != 1 {
		t.Fatalf("expected single shipment after replans, got %d", len(order.Shipments))
	}
	item, _ := repo.ByVariantAndLocation("variant-1", "loc-a")
	if item.Reserved != 4 {
		t.Fatalf("replanning must not add reservations, reserved=%d", item.Reserved)
	}
}

func TestPlan_InsufficientStockFailsWhole(t *testing.T) {
	planner, repo := setup(t, map[string]int32{"loc-a": 2, "loc-b": 1})
	order := makePlannable(4)

	_, err := planner.Plan(planActor, &order, "")
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	// Ни отгрузок, ни резервов: планирование атомарно.
	if len(order.Shipments) != 0 {
		t.Fatalf("no shipments must be committed, got %d", len(order.Shipments))
	}
	for _, loc := range []string{"loc-a", "loc-b"} {
		item, _ := repo.ByVariantAndLocation("variant-1", loc)
		if item.Reserved != 0 {
			t.Fatalf("no reservation must survive failed planning, %s reserved=%d", loc, item.Reserved)
		}
	}
}

func TestRelease_ReturnsReservation(t *testing.T) {
	planner, repo := setup(t, map[string]int32{"loc-a": 5})
	order := makePlannable(4)
	if _, err := planner.Plan(planActor, &order, ""); err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	if _, err := planner.Release(planActor, &order, order.Shipments[0].ID); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if order.Shipments[0].Status != domain.ShipmentStatusCanceled {
		t.Fatalf("expected canceled shipment, got %s", order.Shipments[0].Status)
	}
	item, _ := repo.ByVariantAndLocation("variant-1", "loc-a")
	if item.Reserved != 0 {
		t.Fatalf("expected reservation released, reserved=%d", item.Reserved)
	}

	// Отгруженную отгрузку освобождать нельзя.
	order2 := makePlannable(2)
	order2.ID = "order-2"
	if _, err := planner.Plan(planActor, &order2, ""); err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	order2.Shipments[0].Status = domain.ShipmentStatusShipped
	if _, err := planner.Release(planActor, &order2, order2.Shipments[0].ID); !errors.Is(err, domain.ErrShipmentNotPending) {
		t.Fatalf("expected ErrShipmentNotPending, got %v", err)
	}
}

func TestTransfer_MovesReservation(t *testing.T) {
	planner, repo := setup(t, map[string]int32{"loc-a": 5, "loc-b": 5})
	order := makePlannable(3)
	if _, err := planner.Plan(planActor, &order, ""); err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	source := order.Shipments[0]
	target := "loc-a"
	if source.LocationID == "loc-a" {
		target = "loc-b"
	}

	if err := planner.Transfer(planActor, &order, source.ID, target, "variant-1", 2); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	sourceItem, _ := repo.ByVariantAndLocation("variant-1", source.LocationID)
	targetItem, _ := repo.ByVariantAndLocation("variant-1", target)
	if sourceItem.Reserved+targetItem.Reserved != 3 {
		t.Fatalf("total reservation must stay 3, got %d+%d", sourceItem.Reserved, targetItem.Reserved)
	}
	if targetItem.Reserved != 2 {
		t.Fatalf("expected 2 reserved at target, got %d", targetItem.Reserved)
	}

	var atTarget int32
	for i := range order.Shipments {
		if order.Shipments[i].LocationID == target && order.Shipments[i].Status == domain.ShipmentStatusPending {
			atTarget += order.Shipments[i].Qty("variant-1")
		}
	}
	if atTarget != 2 {
		t.Fatalf("expected 2 units attached to target shipment, got %d", atTarget)
	}
}

// Перенос между двумя отгрузками: количества и резервы обеих площадок
// следуют за составом отгрузок, суммарный резерв заказа не меняется.
func TestTransferToShipment_MovesBetweenShipments(t *testing.T) {
	planner, repo := setup(t, map[string]int32{"loc-a": 3, "loc-b": 3})
	order := makePlannable(4)
	if _, err := planner.Plan(planActor, &order, ""); err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(order.Shipments) != 2 {
		t.Fatalf("expected split into 2 shipments, got %d", len(order.Shipments))
	}

	var from, to *domain.Shipment
	for i := range order.Shipments {
		s := &order.Shipments[i]
		if s.Qty("variant-1") == 3 {
			from = s
		} else {
			to = s
		}
	}
	if from == nil || to == nil {
		t.Fatalf("expected 3+1 split, got %+v", order.Shipments)
	}

	if err := planner.TransferToShipment(planActor, &order, from.ID, to.ID, "variant-1", 2); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if from.Qty("variant-1") != 1 || to.Qty("variant-1") != 3 {
		t.Fatalf("expected 1/3 after transfer, got %d/%d", from.Qty("variant-1"), to.Qty("variant-1"))
	}
	fromItem, _ := repo.ByVariantAndLocation("variant-1", from.LocationID)
	toItem, _ := repo.ByVariantAndLocation("variant-1", to.LocationID)
	if fromItem.Reserved != 1 || toItem.Reserved != 3 {
		t.Fatalf("expected reservations 1/3, got %d/%d", fromItem.Reserved, toItem.Reserved)
	}

	// Больше, чем есть в исходной отгрузке, перенести нельзя.
	if err := planner.TransferToShipment(planActor, &order, from.ID, to.ID, "variant-1", 5); !errors.Is(err, domain.ErrItemQtyInvalid) {
		t.Fatalf("expected ErrItemQtyInvalid, got %v", err)
	}
}

func TestStrategyForName(t *testing.T) {
	cases := []struct {
		name    string
		opts    fulfillment.StrategyOptions
		wantErr bool
		want    string
	}{
		{name: "", want: fulfillment.StrategyHighestStock},
		{name: fulfillment.StrategyHighestStock, want: fulfillment.StrategyHighestStock},
		{name: fulfillment.StrategyNearestLocation, want: fulfillment.StrategyNearestLocation},
		{name: fulfillment.StrategyManual, wantErr: true},
		{
			name: fulfillment.StrategyManual,
			opts: fulfillment.StrategyOptions{ManualOrder: []string{"loc-a"}},
			want: fulfillment.StrategyManual,
		},
		{name: "bogus", wantErr: true},
	}

	for _, tc := range cases {
		strategy, err := fulfillment.ForName(tc.name, tc.opts)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.name, err)
			continue
		}
		if strategy.Name() != tc.want {
			t.Errorf("%q: expected strategy %s, got %s", tc.name, tc.want, strategy.Name())
		}
	}
}

func TestNearestLocationStrategy(t *testing.T) {
	strategy, err := fulfillment.ForName(fulfillment.StrategyNearestLocation, fulfillment.StrategyOptions{})
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	items := []domain.StockItem{
		{ID: "s1", VariantID: "v", LocationID: "far", OnHand: 100},
		{ID: "s2", VariantID: "v", LocationID: "near", OnHand: 1},
	}
	locations := []domain.StockLocation{
		{ID: "near", ProximityRank: 1, Active: true},
		{ID: "far", ProximityRank: 9, Active: true},
	}
	ranked := strategy.Rank(items, locations)
	if ranked[0].LocationID != "near" {
		t.Fatalf("nearest location must rank first, got %s", ranked[0].LocationID)
	}
}
