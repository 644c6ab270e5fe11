package fulfillment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/inventory"
)

// Planner строит отгрузки под позиции заказа, резервируя реальный сток.
// Планирование «всё или ничего»: если хотя бы одну позицию нельзя покрыть
// суммарным доступным остатком, ни одна отгрузка не создаётся.
type Planner struct {
	stock  domain.StockRepository
	ledger *inventory.Ledger
	// costPerShipmentMinor — стоимость доставки одной отгрузки.
	costPerShipmentMinor int64
	strategyOpts         StrategyOptions
	logger               *log.Entry
}

// NewPlanner создаёт планировщик отгрузок.
func NewPlanner(stock domain.StockRepository, ledger *inventory.Ledger, costPerShipmentMinor int64, opts StrategyOptions, logger *log.Entry) *Planner {
	if logger == nil {
		logger = log.New().WithField("component", "fulfillment")
	}
	return &Planner{
		stock:                stock,
		ledger:               ledger,
		costPerShipmentMinor: costPerShipmentMinor,
		strategyOpts:         opts,
		logger:               logger,
	}
}

// Allocation — одно решение «сколько какого варианта с какого склада».
// Plan и Release возвращают совершённые аллокации, чтобы вызывающий мог
// откатить их при сбое сохранения заказа.
type Allocation struct {
	LineItemID string
	VariantID  string
	LocationID string
	Qty        int32
}

// Plan покрывает непокрытые количества позиций заказа отгрузками и
// возвращает сделанные резервы. Повторный вызов без изменения количеств
// ничего не резервирует: уже существующие активные отгрузки учитываются
// как покрытие.
func (p *Planner) Plan(actor domain.Actor, order *domain.Order, strategyName string) ([]Allocation, error) {
	strategy, err := ForName(strategyName, p.strategyOpts)
	if err != nil {
		return nil, err
	}
	locations, err := p.stock.Locations()
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}

	// Сначала полная проверка покрываемости: никаких частичных отгрузок.
	var allocations []Allocation
	for i := range order.Items {
		item := &order.Items[i]
		needed := item.Qty - p.coveredQty(order, item.VariantID)
		if needed <= 0 {
			continue
		}

		candidates, err := p.stock.ByVariant(item.VariantID)
		if err != nil {
			return nil, fmt.Errorf("load stock for variant %s: %w", item.VariantID, err)
		}
		ranked := strategy.Rank(candidates, locations)

		itemAllocs, err := allocate(item, needed, ranked)
		if err != nil {
			p.logger.WithFields(log.Fields{
				"order_id":   order.ID,
				"variant_id": item.VariantID,
				"needed":     needed,
			}).Warn("planning failed, insufficient stock")
			return nil, err
		}
		allocations = append(allocations, itemAllocs...)
	}
	if len(allocations) == 0 {
		return nil, nil
	}

	// Резервируем; при сбое посреди списка компенсируем уже сделанное.
	var reserved []Allocation
	for _, alloc := range allocations {
		item, err := p.ledger.Reserve(actor, alloc.VariantID, alloc.LocationID, alloc.Qty, domain.MovementOriginatorOrder, order.ID)
		if err != nil {
			p.rollback(actor, order.ID, reserved)
			return nil, fmt.Errorf("reserve %d of %s at %s: %w", alloc.Qty, alloc.VariantID, alloc.LocationID, err)
		}
		reserved = append(reserved, alloc)
		if item.AvailableQty() == 0 {
			order.Record(domain.Event{
				Type:  domain.EventStockDepleted,
				Actor: actor.String(),
				Payload: map[string]any{
					"variant_id":  alloc.VariantID,
					"location_id": alloc.LocationID,
				},
			})
		}
	}

	p.attach(order, allocations)
	order.RecomputeTotals()
	order.Record(domain.Event{
		Type:  domain.EventShipmentPlanned,
		Actor: actor.String(),
		Payload: map[string]any{
			"strategy":  strategy.Name(),
			"shipments": len(order.Shipments),
		},
	})
	return reserved, nil
}

// allocate распределяет needed единиц по ранжированным записям стока.
// Предпочитается один склад, способный закрыть всё количество; иначе
// жадное дробление по порядку ранжирования.
func allocate(item *domain.LineItem, needed int32, ranked []domain.StockItem) ([]Allocation, error) {
	var totalAvailable int32
	for _, s := range ranked {
		totalAvailable += s.AvailableQty()
	}
	if totalAvailable < needed {
		return nil, domain.ErrInsufficientStock
	}

	for _, s := range ranked {
		if s.AvailableQty() >= needed {
			return []Allocation{{
				LineItemID: item.ID, VariantID: item.VariantID,
				LocationID: s.LocationID, Qty: needed,
			}}, nil
		}
	}

	var allocs []Allocation
	remaining := needed
	for _, s := range ranked {
		if remaining == 0 {
			break
		}
		take := s.AvailableQty()
		if take <= 0 {
			continue
		}
		if take > remaining {
			take = remaining
		}
		allocs = append(allocs, Allocation{
			LineItemID: item.ID, VariantID: item.VariantID,
			LocationID: s.LocationID, Qty: take,
		})
		remaining -= take
	}
	return allocs, nil
}

// attach раскладывает аллокации по отгрузкам: одна отгрузка на склад.
func (p *Planner) attach(order *domain.Order, allocations []Allocation) {
	now := time.Now().UTC()
	for _, alloc := range allocations {
		var shipment *domain.Shipment
		for i := range order.Shipments {
			s := &order.Shipments[i]
			if s.LocationID == alloc.LocationID && s.Status == domain.ShipmentStatusPending {
				shipment = s
				break
			}
		}
		if shipment == nil {
			order.Shipments = append(order.Shipments, domain.Shipment{
				ID:         uuid.NewString(),
				OrderID:    order.ID,
				LocationID: alloc.LocationID,
				Status:     domain.ShipmentStatusPending,
				CostMinor:  p.costPerShipmentMinor,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			shipment = &order.Shipments[len(order.Shipments)-1]
		}
		shipment.Items = append(shipment.Items, domain.ShipmentItem{
			LineItemID: alloc.LineItemID,
			VariantID:  alloc.VariantID,
			Qty:        alloc.Qty,
		})
		shipment.UpdatedAt = now
	}
}

// Release отменяет отгрузку и возвращает её резерв на склад. Возвращает
// снятые резервы, в том числе частичные при сбое посреди списка.
// Отгруженные (shipped) отгрузки не освобождаются: товар уже уехал.
func (p *Planner) Release(actor domain.Actor, order *domain.Order, shipmentID string) ([]Allocation, error) {
	shipment := order.Shipment(shipmentID)
	if shipment == nil {
		return nil, domain.ErrShipmentNotFound
	}
	if !shipment.Active() {
		return nil, domain.ErrShipmentNotPending
	}

	released := make([]Allocation, 0, len(shipment.Items))
	for _, it := range shipment.Items {
		if _, err := p.ledger.Release(actor, it.VariantID, shipment.LocationID, it.Qty, domain.MovementOriginatorOrder, order.ID); err != nil {
			return released, fmt.Errorf("release %d of %s at %s: %w", it.Qty, it.VariantID, shipment.LocationID, err)
		}
		released = append(released, Allocation{
			LineItemID: it.LineItemID, VariantID: it.VariantID,
			LocationID: shipment.LocationID, Qty: it.Qty,
		})
	}
	shipment.Status = domain.ShipmentStatusCanceled
	shipment.UpdatedAt = time.Now().UTC()
	order.RecomputeTotals()
	return released, nil
}

// Transfer переносит qty зарезервированного варианта на другой склад,
// не меняя суммарный резерв заказа. Используется для ручной переаллокации.
func (p *Planner) Transfer(actor domain.Actor, order *domain.Order, shipmentID, targetLocationID, variantID string, qty int32) error {
	shipment := order.Shipment(shipmentID)
	if shipment == nil {
		return domain.ErrShipmentNotFound
	}
	if !shipment.Active() {
		return domain.ErrShipmentNotPending
	}
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}
	if shipment.Qty(variantID) < qty {
		return domain.ErrItemQtyInvalid
	}
	if shipment.LocationID == targetLocationID {
		return nil
	}

	// Сначала резерв на целевом складе: если его нет, исходный не трогаем.
	if _, err := p.ledger.Reserve(actor, variantID, targetLocationID, qty, domain.MovementOriginatorTransfer, order.ID); err != nil {
		return fmt.Errorf("reserve at target %s: %w", targetLocationID, err)
	}
	if _, err := p.ledger.Release(actor, variantID, shipment.LocationID, qty, domain.MovementOriginatorTransfer, order.ID); err != nil {
		// Компенсируем только что сделанный резерв.
		if _, relErr := p.ledger.Release(actor, variantID, targetLocationID, qty, domain.MovementOriginatorTransfer, order.ID); relErr != nil {
			p.logger.WithError(relErr).WithField("order_id", order.ID).Error("transfer compensation failed")
		}
		return fmt.Errorf("release at source %s: %w", shipment.LocationID, err)
	}

	p.detachQty(shipment, variantID, qty)
	p.attach(order, []Allocation{{
		LineItemID: lineItemIDForVariant(order, variantID),
		VariantID:  variantID, LocationID: targetLocationID, Qty: qty,
	}})
	order.RecomputeTotals()
	return nil
}

// TransferToShipment переносит qty варианта между двумя отгрузками заказа.
func (p *Planner) TransferToShipment(actor domain.Actor, order *domain.Order, fromID, toID, variantID string, qty int32) error {
	from := order.Shipment(fromID)
	to := order.Shipment(toID)
	if from == nil || to == nil {
		return domain.ErrShipmentNotFound
	}
	if !from.Active() || !to.Active() {
		return domain.ErrShipmentNotPending
	}
	if qty <= 0 || from.Qty(variantID) < qty {
		return domain.ErrItemQtyInvalid
	}

	if from.LocationID != to.LocationID {
		if _, err := p.ledger.Reserve(actor, variantID, to.LocationID, qty, domain.MovementOriginatorTransfer, order.ID); err != nil {
			return fmt.Errorf("reserve at target %s: %w", to.LocationID, err)
		}
		if _, err := p.ledger.Release(actor, variantID, from.LocationID, qty, domain.MovementOriginatorTransfer, order.ID); err != nil {
			if _, relErr := p.ledger.Release(actor, variantID, to.LocationID, qty, domain.MovementOriginatorTransfer, order.ID); relErr != nil {
				p.logger.WithError(relErr).WithField("order_id", order.ID).Error("transfer compensation failed")
			}
			return fmt.Errorf("release at source %s: %w", from.LocationID, err)
		}
	}

	p.detachQty(from, variantID, qty)
	to.Items = append(to.Items, domain.ShipmentItem{
		LineItemID: lineItemIDForVariant(order, variantID),
		VariantID:  variantID,
		Qty:        qty,
	})
	to.UpdatedAt = time.Now().UTC()
	order.RecomputeTotals()
	return nil
}

// detachQty убирает qty варианта из отгрузки.
func (p *Planner) detachQty(shipment *domain.Shipment, variantID string, qty int32) {
	remaining := qty
	kept := shipment.Items[:0]
	for _, it := range shipment.Items {
		if it.VariantID != variantID || remaining == 0 {
			kept = append(kept, it)
			continue
		}
		if it.Qty > remaining {
			it.Qty -= remaining
			remaining = 0
			kept = append(kept, it)
			continue
		}
		remaining -= it.Qty
	}
	shipment.Items = kept
	shipment.UpdatedAt = time.Now().UTC()
}

func lineItemIDForVariant(order *domain.Order, variantID string) string {
	if item := order.ItemByVariant(variantID); item != nil {
		return item.ID
	}
	return ""
}

// coveredQty — количество варианта, уже удерживаемое активными отгрузками.
func (p *Planner) coveredQty(order *domain.Order, variantID string) int32 {
	var covered int32
	for i := range order.Shipments {
		s := &order.Shipments[i]
		if s.Active() {
			covered += s.Qty(variantID)
		}
	}
	return covered
}

// Undo снимает резервы неудачной попытки планирования: без отката повтор
// после конфликта версий заказа задвоил бы резерв.
func (p *Planner) Undo(actor domain.Actor, orderID string, reserved []Allocation) {
	p.rollback(actor, orderID, reserved)
}

// Restore возвращает резервы, снятые неудачной попыткой перепланирования:
// сохранённый заказ всё ещё удерживает эти количества.
func (p *Planner) Restore(actor domain.Actor, orderID string, released []Allocation) {
	for _, alloc := range released {
		if _, err := p.ledger.Reserve(actor, alloc.VariantID, alloc.LocationID, alloc.Qty, domain.MovementOriginatorOrder, orderID); err != nil {
			p.logger.WithError(err).WithFields(log.Fields{
				"order_id":    orderID,
				"variant_id":  alloc.VariantID,
				"location_id": alloc.LocationID,
			}).Error("restore of reservation failed")
		}
	}
}

// rollback снимает резервы, сделанные до сбоя планирования.
func (p *Planner) rollback(actor domain.Actor, orderID string, reserved []Allocation) {
	for _, alloc := range reserved {
		if _, err := p.ledger.Release(actor, alloc.VariantID, alloc.LocationID, alloc.Qty, domain.MovementOriginatorOrder, orderID); err != nil {
			p.logger.WithError(err).WithFields(log.Fields{
				"order_id":    orderID,
				"variant_id":  alloc.VariantID,
				"location_id": alloc.LocationID,
			}).Error("rollback of reservation failed")
		}
	}
}
