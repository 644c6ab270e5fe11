// Package inventory ведёт учёт стока: наличие и резерв на пару
// (вариант, склад) плюс append-only журнал движений.
package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	maxCASAttempts = 3
	casBaseDelay   = 10 * time.Millisecond
)

// Ledger — сервис складского учёта. Каждая операция — короткая атомарная
// запись с optimistic locking по версии учётной записи: две конкурентные
// попытки резерва одного стока ловят конфликт и повторяются, а не портят
// счётчик.
type Ledger struct {
	stock  domain.StockRepository
	logger *log.Entry
}

// NewLedger создаёт сервис учёта стока.
func NewLedger(stock domain.StockRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "inventory")
	}
	return &Ledger{stock: stock, logger: logger}
}

// Reserve увеличивает резерв пары (вариант, склад) на qty и записывает
// движение. Возвращает обновлённую запись; при нехватке доступного
// количества — ErrInsufficientStock без изменений.
func (l *Ledger) Reserve(actor domain.Actor, variantID, locationID string, qty int32, originator domain.MovementOriginator, referenceID string) (domain.StockItem, error) {
	if qty <= 0 {
		return domain.StockItem{}, domain.ErrItemQtyInvalid
	}
	return l.mutate(actor, variantID, locationID, func(item *domain.StockItem) (domain.StockMovement, error) {
		if item.AvailableQty() < qty {
			return domain.StockMovement{}, domain.ErrInsufficientStock
		}
		item.Reserved += qty
		return domain.StockMovement{
			ReservedDelta: qty,
			Originator:    originator,
			ReferenceID:   referenceID,
			Reason:        domain.MovementReasonReservation,
		}, nil
	})
}

// Release снимает резерв на qty (компенсация отмены).
func (l *Ledger) Release(actor domain.Actor, variantID, locationID string, qty int32, originator domain.MovementOriginator, referenceID string) (domain.StockItem, error) {
	if qty <= 0 {
		return domain.StockItem{}, domain.ErrItemQtyInvalid
	}
	return l.mutate(actor, variantID, locationID, func(item *domain.StockItem) (domain.StockMovement, error) {
		if item.Reserved < qty {
			return domain.StockMovement{}, domain.ErrReservedOutOfRange
		}
		item.Reserved -= qty
		return domain.StockMovement{
			ReservedDelta: -qty,
			Originator:    originator,
			ReferenceID:   referenceID,
			Reason:        domain.MovementReasonRelease,
		}, nil
	})
}

// Ship списывает зарезервированное количество в расход: уменьшаются и
// резерв, и наличие. Вызывается при передаче отгрузки перевозчику.
func (l *Ledger) Ship(actor domain.Actor, variantID, locationID string, qty int32, orderID string) (domain.StockItem, error) {
	if qty <= 0 {
		return domain.StockItem{}, domain.ErrItemQtyInvalid
	}
	return l.mutate(actor, variantID, locationID, func(item *domain.StockItem) (domain.StockMovement, error) {
		if item.Reserved < qty {
			return domain.StockMovement{}, domain.ErrReservedOutOfRange
		}
		item.Reserved -= qty
		item.OnHand -= qty
		return domain.StockMovement{
			QtyDelta:      -qty,
			ReservedDelta: -qty,
			Originator:    domain.MovementOriginatorOrder,
			ReferenceID:   orderID,
			Reason:        domain.MovementReasonShip,
		}, nil
	})
}

// Adjust меняет наличие вручную (приёмка, инвентаризация). Дельта может
// быть отрицательной, но не ниже текущего резерва.
func (l *Ledger) Adjust(actor domain.Actor, variantID, locationID string, delta int32, reason string) (domain.StockItem, error) {
	if delta == 0 {
		return domain.StockItem{}, domain.ErrMovementEmpty
	}
	if reason == "" {
		reason = domain.MovementReasonAdjustment
	}
	return l.mutate(actor, variantID, locationID, func(item *domain.StockItem) (domain.StockMovement, error) {
		next := item.OnHand + delta
		if next < 0 || next < item.Reserved {
			return domain.StockMovement{}, domain.ErrStockNegative
		}
		item.OnHand = next
		return domain.StockMovement{
			QtyDelta:   delta,
			Originator: domain.MovementOriginatorManual,
			Reason:     reason,
		}, nil
	})
}

// Reconcile сверяет журнал движений с текущим наличием записи.
// Расхождение — нарушение инварианта, оно никогда не исправляется молча.
func (l *Ledger) Reconcile(stockItemID string) error {
	item, err := l.stock.Get(stockItemID)
	if err != nil {
		return err
	}
	movements, err := l.stock.Movements(stockItemID)
	if err != nil {
		return fmt.Errorf("load movements: %w", err)
	}
	var sum int32
	for _, m := range movements {
		sum += m.QtyDelta
	}
	if sum != item.OnHand {
		l.logger.WithFields(log.Fields{
			"stock_item_id": stockItemID,
			"on_hand":       item.OnHand,
			"movement_sum":  sum,
		}).Error("stock ledger does not reconcile")
		return fmt.Errorf("stock item %s: %w", stockItemID, domain.ErrLedgerMismatch)
	}
	return nil
}

// mutate выполняет изменение записи с ограниченным числом CAS-повторов.
func (l *Ledger) mutate(actor domain.Actor, variantID, locationID string, apply func(*domain.StockItem) (domain.StockMovement, error)) (domain.StockItem, error) {
	if !actor.Valid() {
		return domain.StockItem{}, domain.ErrActorRequired
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		item, err := l.stock.ByVariantAndLocation(variantID, locationID)
		if err != nil {
			return domain.StockItem{}, err
		}

		movement, err := apply(&item)
		if err != nil {
			return domain.StockItem{}, err
		}
		movement.ID = uuid.NewString()
		movement.StockItemID = item.ID
		movement.Actor = actor.String()
		movement.CreatedAt = time.Now().UTC()
		item.UpdatedAt = movement.CreatedAt

		if errs := item.ValidateInvariants(); len(errs) != 0 {
			return domain.StockItem{}, fmt.Errorf("stock item %s: %v: %w", item.ID, errs, domain.ErrReservedOutOfRange)
		}

		err = l.stock.SaveWithMovement(item, movement)
		if err == nil {
			item.Version++
			return item, nil
		}
		if !domain.IsVersionConflict(err) {
			return domain.StockItem{}, fmt.Errorf("save stock item: %w", err)
		}

		l.logger.WithFields(log.Fields{
			"variant_id":  variantID,
			"location_id": locationID,
			"attempt":     attempt + 1,
		}).Warn("stock version conflict, retrying")
		time.Sleep(casBaseDelay * time.Duration(1<<uint(attempt)))
	}

	return domain.StockItem{}, domain.ErrVersionConflict
}
