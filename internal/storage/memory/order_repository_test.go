package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestOrderRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	repo := NewOrderRepository()
	order := domain.Order{
		ID: "order-1", CustomerID: "customer-1", Status: domain.OrderStatusCart,
		Currency: "USD", CreatedAt: time.Now().UTC(),
	}

	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(order); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for duplicate create, got %v", err)
	}

	got, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.CustomerID != "customer-1" {
		t.Fatalf("unexpected customer %s", got.CustomerID)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	t.Parallel()

	repo := NewOrderRepository()
	order := domain.Order{ID: "order-1", CustomerID: "customer-1", Status: domain.OrderStatusCart}
	if err := repo.Create(order); err != nil {
		t.Fatal(err)
	}

	first, _ := repo.Get("order-1")
	second, _ := repo.Get("order-1")

	first.Status = domain.OrderStatusAddressSet
	if err := repo.Save(first); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	// Сохранение со старой версией должно отклоняться.
	second.Status = domain.OrderStatusCanceled
	if err := repo.Save(second); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, _ := repo.Get("order-1")
	if got.Status != domain.OrderStatusAddressSet {
		t.Fatalf("stale save must not win, status is %s", got.Status)
	}
	if got.Version != order.Version+1 {
		t.Fatalf("expected version increment, got %d", got.Version)
	}
}

func TestOrderRepository_ByPaymentRef(t *testing.T) {
	t.Parallel()

	repo := NewOrderRepository()
	order := domain.Order{
		ID: "order-1", CustomerID: "customer-1", Status: domain.OrderStatusPaymentSelected,
		Payments: []domain.Payment{
			{ID: "pay-1", OrderID: "order-1", GatewayRef: "ref-42", Status: domain.PaymentStatusAuthorized},
		},
	}
	if err := repo.Create(order); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ByPaymentRef("ref-42")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got.ID != "order-1" {
		t.Fatalf("expected order-1, got %s", got.ID)
	}

	if _, err := repo.ByPaymentRef("unknown"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := repo.ByPaymentRef(""); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for empty ref, got %v", err)
	}
}

func TestOrderRepository_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	repo := NewOrderRepository()
	order := domain.Order{
		ID: "order-1", CustomerID: "customer-1", Status: domain.OrderStatusCart,
		Items: []domain.LineItem{{ID: "item-1", VariantID: "variant-1", Qty: 1, UnitPriceMinor: 1000}},
	}
	if err := repo.Create(order); err != nil {
		t.Fatal(err)
	}

	got, _ := repo.Get("order-1")
	got.Items[0].Qty = 99

	fresh, _ := repo.Get("order-1")
	if fresh.Items[0].Qty != 1 {
		t.Fatal("mutation of returned order leaked into repository")
	}
}

func TestOrderRepository_ListByCustomer(t *testing.T) {
	t.Parallel()

	repo := NewOrderRepository()
	base := time.Now().UTC()
	for i, id := range []string{"order-1", "order-2", "order-3"} {
		if err := repo.Create(domain.Order{
			ID: id, CustomerID: "customer-1", Status: domain.OrderStatusCart,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Create(domain.Order{ID: "other", CustomerID: "customer-2"}); err != nil {
		t.Fatal(err)
	}

	orders, err := repo.ListByCustomer("customer-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	// Свежие заказы идут первыми.
	if orders[0].ID != "order-3" || orders[1].ID != "order-2" {
		t.Fatalf("unexpected order: %s, %s", orders[0].ID, orders[1].ID)
	}
}
