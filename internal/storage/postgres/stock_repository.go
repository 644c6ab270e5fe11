package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type stockRepository struct {
	db *sql.DB
}

// NewStockRepository создаёт PostgreSQL-реализацию StockRepository.
func NewStockRepository(store *Store) domain.StockRepository {
	return &stockRepository{db: store.DB()}
}

const stockColumns = `id, variant_id, location_id, on_hand, reserved, version, created_at, updated_at`

func (r *stockRepository) Get(id string) (domain.StockItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+stockColumns+` FROM stock_items WHERE id = $1`, id))
}

func (r *stockRepository) ByVariantAndLocation(variantID, locationID string) (domain.StockItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+stockColumns+` FROM stock_items WHERE variant_id = $1 AND location_id = $2`,
		variantID, locationID))
}

func (r *stockRepository) ByVariant(variantID string) ([]domain.StockItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stockColumns+` FROM stock_items WHERE variant_id = $1 ORDER BY location_id`,
		variantID)
	if err != nil {
		return nil, fmt.Errorf("select stock by variant: %w", err)
	}
	defer rows.Close()

	items := make([]domain.StockItem, 0)
	for rows.Next() {
		var item domain.StockItem
		if err := rows.Scan(&item.ID, &item.VariantID, &item.LocationID,
			&item.OnHand, &item.Reserved, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *stockRepository) Create(item domain.StockItem) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_items (`+stockColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, item.ID, item.VariantID, item.LocationID, item.OnHand, item.Reserved,
		item.Version, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert stock item: %w", err)
	}
	return nil
}

// SaveWithMovement атомарно обновляет счётчики с проверкой версии и
// дописывает движение в журнал. Конкурентная запись той же версии
// получает ErrVersionConflict и повторяется вызывающим.
func (r *stockRepository) SaveWithMovement(item domain.StockItem, movement domain.StockMovement) error {
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
		UPDATE stock_items
		SET on_hand = $2, reserved = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $5
	`, item.ID, item.OnHand, item.Reserved, item.UpdatedAt, item.Version)
	if err != nil {
		return fmt.Errorf("update stock item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = domain.ErrVersionConflict
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, stock_item_id, qty_delta, reserved_delta, originator, reference_id, reason, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, movement.ID, movement.StockItemID, movement.QtyDelta, movement.ReservedDelta,
		string(movement.Originator), movement.ReferenceID, movement.Reason,
		movement.Actor, movement.CreatedAt); err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit stock save: %w", err)
	}
	return nil
}

func (r *stockRepository) Movements(stockItemID string) ([]domain.StockMovement, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, stock_item_id, qty_delta, reserved_delta, originator, reference_id, reason, actor, created_at
		FROM stock_movements
		WHERE stock_item_id = $1
		ORDER BY created_at, id
	`, stockItemID)
	if err != nil {
		return nil, fmt.Errorf("select stock movements: %w", err)
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0)
	for rows.Next() {
		var m domain.StockMovement
		var originator string
		if err := rows.Scan(&m.ID, &m.StockItemID, &m.QtyDelta, &m.ReservedDelta,
			&originator, &m.ReferenceID, &m.Reason, &m.Actor, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		m.Originator = domain.MovementOriginator(originator)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *stockRepository) Locations() ([]domain.StockLocation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, proximity_rank, active
		FROM stock_locations
		WHERE active
		ORDER BY proximity_rank, id
	`)
	if err != nil {
		return nil, fmt.Errorf("select stock locations: %w", err)
	}
	defer rows.Close()

	locations := make([]domain.StockLocation, 0)
	for rows.Next() {
		var loc domain.StockLocation
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.ProximityRank, &loc.Active); err != nil {
			return nil, fmt.Errorf("scan stock location: %w", err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

func (r *stockRepository) scanOne(row *sql.Row) (domain.StockItem, error) {
	var item domain.StockItem
	err := row.Scan(&item.ID, &item.VariantID, &item.LocationID,
		&item.OnHand, &item.Reserved, &item.Version, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StockItem{}, domain.ErrStockItemNotFound
		}
		return domain.StockItem{}, fmt.Errorf("select stock item: %w", err)
	}
	return item, nil
}

var _ domain.StockRepository = (*stockRepository)(nil)
