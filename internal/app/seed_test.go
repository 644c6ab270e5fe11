package app

import (
	"context"
	"testing"
)

// Демо-данные заводятся приёмкой через ledger: журнал движений каждой
// учётной записи обязан сходиться с наличием сразу после старта.
func TestSeedDemoDataReconciles(t *testing.T) {
	deps, err := NewDependencies(context.Background(), Config{
		Storage:           "memory",
		PaymentSealSecret: "seed-test-secret",
		ShipmentCostMinor: 500,
	}, nil)
	if err != nil {
		t.Fatalf("build dependencies: %v", err)
	}
	defer deps.Close()

	if err := deps.SeedDemoData(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	for _, id := range []string{
		"warehouse-east/variant-widget",
		"warehouse-east/variant-gadget",
		"warehouse-west/variant-widget",
	} {
		if err := deps.Ledger.Reconcile(id); err != nil {
			t.Errorf("seeded stock %s does not reconcile: %v", id, err)
		}
	}

	item, err := deps.Stock.Get("warehouse-east/variant-widget")
	if err != nil {
		t.Fatalf("load seeded stock: %v", err)
	}
	if item.OnHand != 50 {
		t.Errorf("expected on-hand 50, got %d", item.OnHand)
	}

	if _, err := deps.Methods.ByCode("card"); err != nil {
		t.Errorf("seeded payment method missing: %v", err)
	}
	if _, err := deps.Catalog.Variant("variant-gadget"); err != nil {
		t.Errorf("seeded variant missing: %v", err)
	}
}
