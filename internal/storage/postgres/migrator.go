package postgres

import (
	"context"
	"fmt"
)

const (
	migrationLockKey  = int64(47180233)
	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

type migration struct {
	Version int64
	Name    string
	DDL     string
}

// migrations применяются по порядку версий. Каждая миграция выполняется
// в собственной транзакции и фиксируется в schema_migrations.
var migrations = []migration{
	{1, "orders", `
CREATE TABLE orders (
    id UUID PRIMARY KEY,
    customer_id TEXT NOT NULL,
    status TEXT NOT NULL,
    currency TEXT NOT NULL,
    ship_line1 TEXT NOT NULL DEFAULT '',
    ship_city TEXT NOT NULL DEFAULT '',
    ship_region TEXT NOT NULL DEFAULT '',
    ship_postal_code TEXT NOT NULL DEFAULT '',
    ship_country TEXT NOT NULL DEFAULT '',
    item_total_minor BIGINT NOT NULL DEFAULT 0,
    adjustment_total_minor BIGINT NOT NULL DEFAULT 0,
    shipment_total_minor BIGINT NOT NULL DEFAULT 0,
    total_minor BIGINT NOT NULL DEFAULT 0,
    version BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX idx_orders_customer ON orders (customer_id, created_at DESC)`},
	{2, "line_items", `
CREATE TABLE line_items (
    id UUID PRIMARY KEY,
    order_id UUID NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
    variant_id TEXT NOT NULL,
    sku TEXT NOT NULL,
    name TEXT NOT NULL,
    unit_price_minor BIGINT NOT NULL,
    qty INT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX idx_line_items_order ON line_items (order_id)`},
	{3, "adjustments", `
CREATE TABLE adjustments (
    id UUID PRIMARY KEY,
    order_id UUID NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
    line_item_id UUID NULL,
    level TEXT NOT NULL,
    promotion_id TEXT NOT NULL DEFAULT '',
    label TEXT NOT NULL DEFAULT '',
    amount_minor BIGINT NOT NULL,
    eligible BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX idx_adjustments_order ON adjustments (order_id)`},
	{4, "shipments", `
CREATE TABLE shipments (
    id UUID PRIMARY KEY,
    order_id UUID NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
    location_id TEXT NOT NULL,
    status TEXT NOT NULL,
    cost_minor BIGINT NOT NULL DEFAULT 0,
    tracking_number TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX idx_shipments_order ON shipments (order_id);
CREATE TABLE shipment_items (
    shipment_id UUID NOT NULL REFERENCES shipments (id) ON DELETE CASCADE,
    line_item_id UUID NOT NULL,
    variant_id TEXT NOT NULL,
    qty INT NOT NULL,
    seq INT NOT NULL,
    PRIMARY KEY (shipment_id, seq)
)`},
	{5, "payments", `
CREATE TABLE payments (
    id UUID PRIMARY KEY,
    order_id UUID NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
    provider TEXT NOT NULL,
    method_code TEXT NOT NULL,
    status TEXT NOT NULL,
    amount_minor BIGINT NOT NULL,
    refunded_minor BIGINT NOT NULL DEFAULT 0,
    idempotency_key TEXT NOT NULL,
    gateway_ref TEXT NOT NULL DEFAULT '',
    failure_reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX idx_payments_order ON payments (order_id);
CREATE INDEX idx_payments_gateway_ref ON payments (gateway_ref) WHERE gateway_ref <> ''`},
	{6, "stock", `
CREATE TABLE stock_locations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    proximity_rank INT NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE stock_items (
    id UUID PRIMARY KEY,
    variant_id TEXT NOT NULL,
    location_id TEXT NOT NULL REFERENCES stock_locations (id),
    on_hand INT NOT NULL DEFAULT 0,
    reserved INT NOT NULL DEFAULT 0,
    version BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    UNIQUE (variant_id, location_id)
);
CREATE TABLE stock_movements (
    id UUID PRIMARY KEY,
    stock_item_id UUID NOT NULL REFERENCES stock_items (id),
    qty_delta INT NOT NULL DEFAULT 0,
    reserved_delta INT NOT NULL DEFAULT 0,
    originator TEXT NOT NULL,
    reference_id TEXT NOT NULL DEFAULT '',
    reason TEXT NOT NULL,
    actor TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX idx_stock_movements_item ON stock_movements (stock_item_id, created_at)`},
	{7, "payment_methods", `
CREATE TABLE payment_methods (
    code TEXT PRIMARY KEY,
    provider TEXT NOT NULL,
    auto_capture BOOLEAN NOT NULL DEFAULT FALSE,
    deferred_capture BOOLEAN NOT NULL DEFAULT FALSE,
    sealed_credentials BYTEA NOT NULL
)`},
	{8, "processed_webhooks", `
CREATE TABLE processed_webhooks (
    provider TEXT NOT NULL,
    event_id TEXT NOT NULL,
    processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (provider, event_id)
)`},
	{9, "outbox", `
CREATE TABLE outbox (
    id UUID PRIMARY KEY,
    aggregate_type TEXT NOT NULL,
    aggregate_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    payload BYTEA NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    attempt_cnt INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX idx_outbox_pending ON outbox (created_at) WHERE status = 'pending'`},
	{10, "order_timeline", `
CREATE TABLE order_timeline (
    id BIGSERIAL PRIMARY KEY,
    order_id UUID NOT NULL,
    event_type TEXT NOT NULL,
    actor TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX idx_order_timeline_order ON order_timeline (order_id, occurred_at)`},
}

// EnsureSchema применяет все недостающие миграции под advisory-lock:
// одновременный старт нескольких инстансов не дублирует DDL.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	applied := make(map[int64]bool)
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.DDL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d_%s: %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schema_migrations (version, name) VALUES ($1, $2)
		`, m.Version, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d_%s: %w", m.Version, m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrationStatus возвращает текущую версию схемы и число применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("postgres store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, migrationTableDDL); err != nil {
		return 0, 0, fmt.Errorf("ensure migration table: %w", err)
	}

	var (
		version int64
		count   int
	)
	if err := s.db.QueryRowContext(queryCtx, `
		SELECT COALESCE(MAX(version), 0), COUNT(*) FROM schema_migrations
	`).Scan(&version, &count); err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}
	return version, count, nil
}
