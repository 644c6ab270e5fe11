package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

const orderColumns = `
	id, customer_id, status, currency,
	ship_line1, ship_city, ship_region, ship_postal_code, ship_country,
	item_total_minor, adjustment_total_minor, shipment_total_minor, total_minor,
	version, created_at, updated_at`

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		order.ID, order.CustomerID, string(order.Status), order.Currency,
		order.ShipAddress.Line1, order.ShipAddress.City, order.ShipAddress.Region,
		order.ShipAddress.PostalCode, order.ShipAddress.Country,
		order.ItemTotalMinor, order.AdjustmentTotalMinor, order.ShipmentTotalMinor, order.TotalMinor,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	if err = insertChildren(ctx, tx, &order); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	if err := r.loadChildren(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *orderRepository) ByPaymentRef(gatewayRef string) (domain.Order, error) {
	if gatewayRef == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var orderID string
	err := r.db.QueryRowContext(ctx, `
		SELECT order_id FROM payments WHERE gateway_ref = $1 LIMIT 1
	`, gatewayRef).Scan(&orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select payment by ref: %w", err)
	}
	return r.Get(orderID)
}

func (r *orderRepository) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", customerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	for i := range orders {
		if err := r.loadChildren(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// Save перезаписывает агрегат: шапка обновляется с проверкой версии,
// дочерние коллекции пересоздаются в той же транзакции.
func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET
			customer_id = $2, status = $3, currency = $4,
			ship_line1 = $5, ship_city = $6, ship_region = $7,
			ship_postal_code = $8, ship_country = $9,
			item_total_minor = $10, adjustment_total_minor = $11,
			shipment_total_minor = $12, total_minor = $13,
			version = version + 1, updated_at = $14
		WHERE id = $1 AND version = $15
	`,
		order.ID, order.CustomerID, string(order.Status), order.Currency,
		order.ShipAddress.Line1, order.ShipAddress.City, order.ShipAddress.Region,
		order.ShipAddress.PostalCode, order.ShipAddress.Country,
		order.ItemTotalMinor, order.AdjustmentTotalMinor, order.ShipmentTotalMinor, order.TotalMinor,
		order.UpdatedAt, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = domain.ErrVersionConflict
		return err
	}

	for _, table := range []string{"shipment_items", "shipments", "adjustments", "line_items", "payments"} {
		query := fmt.Sprintf("DELETE FROM %s WHERE order_id = $1", table)
		if table == "shipment_items" {
			query = "DELETE FROM shipment_items WHERE shipment_id IN (SELECT id FROM shipments WHERE order_id = $1)"
		}
		if _, err = tx.ExecContext(ctx, query, order.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err = insertChildren(ctx, tx, &order); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save order: %w", err)
	}
	return nil
}

func insertChildren(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	for i := range order.Items {
		item := &order.Items[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (id, order_id, variant_id, sku, name, unit_price_minor, qty, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, order.ID, item.VariantID, item.SKU, item.Name, item.UnitPriceMinor, item.Qty, item.CreatedAt); err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
		for _, adj := range item.Adjustments {
			if err := insertAdjustment(ctx, tx, order.ID, adj); err != nil {
				return err
			}
		}
	}
	for _, adj := range order.Adjustments {
		if err := insertAdjustment(ctx, tx, order.ID, adj); err != nil {
			return err
		}
	}
	for i := range order.Shipments {
		s := &order.Shipments[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shipments (id, order_id, location_id, status, cost_minor, tracking_number, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, s.ID, order.ID, s.LocationID, string(s.Status), s.CostMinor, s.TrackingNumber, s.CreatedAt, s.UpdatedAt); err != nil {
			return fmt.Errorf("insert shipment: %w", err)
		}
		for seq, it := range s.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO shipment_items (shipment_id, line_item_id, variant_id, qty, seq)
				VALUES ($1,$2,$3,$4,$5)
			`, s.ID, it.LineItemID, it.VariantID, it.Qty, seq); err != nil {
				return fmt.Errorf("insert shipment item: %w", err)
			}
		}
	}
	for i := range order.Payments {
		p := &order.Payments[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, order_id, provider, method_code, status, amount_minor, refunded_minor, idempotency_key, gateway_ref, failure_reason, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, p.ID, order.ID, p.Provider, p.MethodCode, string(p.Status), p.AmountMinor, p.RefundedMinor,
			p.IdempotencyKey, p.GatewayRef, p.FailureReason, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
	}
	return nil
}

func insertAdjustment(ctx context.Context, tx *sql.Tx, orderID string, adj domain.Adjustment) error {
	var lineItemID sql.NullString
	if adj.LineItemID != "" {
		lineItemID = sql.NullString{String: adj.LineItemID, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO adjustments (id, order_id, line_item_id, level, promotion_id, label, amount_minor, eligible, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, adj.ID, orderID, lineItemID, string(adj.Level), adj.PromotionID, adj.Label, adj.AmountMinor, adj.Eligible, adj.CreatedAt); err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var status string
	err := row.Scan(
		&order.ID, &order.CustomerID, &status, &order.Currency,
		&order.ShipAddress.Line1, &order.ShipAddress.City, &order.ShipAddress.Region,
		&order.ShipAddress.PostalCode, &order.ShipAddress.Country,
		&order.ItemTotalMinor, &order.AdjustmentTotalMinor, &order.ShipmentTotalMinor, &order.TotalMinor,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	return order, nil
}

func (r *orderRepository) loadChildren(ctx context.Context, order *domain.Order) error {
	if err := r.loadItems(ctx, order); err != nil {
		return err
	}
	if err := r.loadAdjustments(ctx, order); err != nil {
		return err
	}
	if err := r.loadShipments(ctx, order); err != nil {
		return err
	}
	return r.loadPayments(ctx, order)
}

func (r *orderRepository) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, variant_id, sku, name, unit_price_minor, qty, created_at
		FROM line_items WHERE order_id = $1 ORDER BY created_at, id
	`, order.ID)
	if err != nil {
		return fmt.Errorf("select line items: %w", err)
	}
	defer rows.Close()

	order.Items = order.Items[:0]
	for rows.Next() {
		item := domain.LineItem{OrderID: order.ID}
		if err := rows.Scan(&item.ID, &item.VariantID, &item.SKU, &item.Name,
			&item.UnitPriceMinor, &item.Qty, &item.CreatedAt); err != nil {
			return fmt.Errorf("scan line item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

func (r *orderRepository) loadAdjustments(ctx context.Context, order *domain.Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, line_item_id, level, promotion_id, label, amount_minor, eligible, created_at
		FROM adjustments WHERE order_id = $1 ORDER BY created_at, id
	`, order.ID)
	if err != nil {
		return fmt.Errorf("select adjustments: %w", err)
	}
	defer rows.Close()

	order.Adjustments = order.Adjustments[:0]
	for rows.Next() {
		adj := domain.Adjustment{OrderID: order.ID}
		var lineItemID sql.NullString
		var level string
		if err := rows.Scan(&adj.ID, &lineItemID, &level, &adj.PromotionID,
			&adj.Label, &adj.AmountMinor, &adj.Eligible, &adj.CreatedAt); err != nil {
			return fmt.Errorf("scan adjustment: %w", err)
		}
		adj.Level = domain.AdjustmentLevel(level)
		adj.LineItemID = lineItemID.String

		if adj.LineItemID != "" {
			if item := order.Item(adj.LineItemID); item != nil {
				item.Adjustments = append(item.Adjustments, adj)
				continue
			}
		}
		order.Adjustments = append(order.Adjustments, adj)
	}
	return rows.Err()
}

func (r *orderRepository) loadShipments(ctx context.Context, order *domain.Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, location_id, status, cost_minor, tracking_number, created_at, updated_at
		FROM shipments WHERE order_id = $1 ORDER BY created_at, id
	`, order.ID)
	if err != nil {
		return fmt.Errorf("select shipments: %w", err)
	}
	defer rows.Close()

	order.Shipments = order.Shipments[:0]
	for rows.Next() {
		s := domain.Shipment{OrderID: order.ID}
		var status string
		if err := rows.Scan(&s.ID, &s.LocationID, &status, &s.CostMinor,
			&s.TrackingNumber, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return fmt.Errorf("scan shipment: %w", err)
		}
		s.Status = domain.ShipmentStatus(status)
		order.Shipments = append(order.Shipments, s)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range order.Shipments {
		s := &order.Shipments[i]
		itemRows, err := r.db.QueryContext(ctx, `
			SELECT line_item_id, variant_id, qty
			FROM shipment_items WHERE shipment_id = $1 ORDER BY seq
		`, s.ID)
		if err != nil {
			return fmt.Errorf("select shipment items: %w", err)
		}
		for itemRows.Next() {
			var it domain.ShipmentItem
			if err := itemRows.Scan(&it.LineItemID, &it.VariantID, &it.Qty); err != nil {
				itemRows.Close()
				return fmt.Errorf("scan shipment item: %w", err)
			}
			s.Items = append(s.Items, it)
		}
		itemRows.Close()
		if err := itemRows.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepository) loadPayments(ctx context.Context, order *domain.Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, provider, method_code, status, amount_minor, refunded_minor,
			idempotency_key, gateway_ref, failure_reason, created_at, updated_at
		FROM payments WHERE order_id = $1 ORDER BY created_at, id
	`, order.ID)
	if err != nil {
		return fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	order.Payments = order.Payments[:0]
	for rows.Next() {
		p := domain.Payment{OrderID: order.ID}
		var status string
		if err := rows.Scan(&p.ID, &p.Provider, &p.MethodCode, &status, &p.AmountMinor,
			&p.RefundedMinor, &p.IdempotencyKey, &p.GatewayRef, &p.FailureReason,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		p.Status = domain.PaymentStatus(status)
		order.Payments = append(order.Payments, p)
	}
	return rows.Err()
}

var _ domain.OrderRepository = (*orderRepository)(nil)
