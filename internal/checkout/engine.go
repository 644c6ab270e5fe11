// Package checkout оркестрирует жизненный цикл заказа: state machine
// оформления, пересчёт корректировок, планирование отгрузок и платежи.
package checkout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/fulfillment"
	"github.com/vladislavdragonenkov/checkout/internal/inventory"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
	"github.com/vladislavdragonenkov/checkout/internal/payments"
	"github.com/vladislavdragonenkov/checkout/internal/pricing"
)

const (
	maxSaveAttempts = 3
	saveBaseDelay   = 10 * time.Millisecond
)

// Engine — единственная точка изменения заказа. Каждая операция
// принимает актора явным аргументом, загружает свежий заказ, применяет
// изменение и сохраняет с optimistic locking. Накопленные доменные
// события уходят в outbox и timeline только после успешного сохранения.
type Engine struct {
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	catalog  domain.CatalogService
	pricing  *pricing.Engine
	planner  *fulfillment.Planner
	ledger   *inventory.Ledger
	payments *payments.Coordinator
	metrics  *metrics.CheckoutMetrics
	logger   *log.Entry
}

// Deps — зависимости движка оформления. Metrics опциональны.
type Deps struct {
	Orders   domain.OrderRepository
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository
	Catalog  domain.CatalogService
	Pricing  *pricing.Engine
	Planner  *fulfillment.Planner
	Ledger   *inventory.Ledger
	Payments *payments.Coordinator
	Metrics  *metrics.CheckoutMetrics
	Logger   *log.Entry
}

// NewEngine создаёт движок оформления заказа.
func NewEngine(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &Engine{
		orders:   deps.Orders,
		outbox:   deps.Outbox,
		timeline: deps.Timeline,
		catalog:  deps.Catalog,
		pricing:  deps.Pricing,
		planner:  deps.Planner,
		ledger:   deps.Ledger,
		payments: deps.Payments,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// CreateOrder создаёт пустую корзину клиента.
func (e *Engine) CreateOrder(actor domain.Actor, customerID, currency string) (domain.Order, error) {
	if !actor.Valid() {
		return domain.Order{}, domain.ErrActorRequired
	}
	if customerID == "" {
		return domain.Order{}, domain.ErrCustomerRequired
	}
	if currency == "" {
		return domain.Order{}, domain.ErrCurrencyRequired
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Status:     domain.OrderStatusCart,
		Currency:   currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.orders.Create(order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	if err := e.timeline.Append(domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     "order.created",
		Actor:    actor.String(),
		Occurred: now,
	}); err != nil {
		e.logger.WithError(err).WithField("order_id", order.ID).Error("timeline append failed")
	}
	return order, nil
}

// GetOrder возвращает заказ по идентификатору.
func (e *Engine) GetOrder(orderID string) (domain.Order, error) {
	return e.orders.Get(orderID)
}

// ListOrders возвращает заказы клиента, новые первыми.
func (e *Engine) ListOrders(customerID string, limit int) ([]domain.Order, error) {
	return e.orders.ListByCustomer(customerID, limit)
}

// Timeline возвращает историю событий заказа.
func (e *Engine) Timeline(orderID string) ([]domain.TimelineEvent, error) {
	if _, err := e.orders.Get(orderID); err != nil {
		return nil, err
	}
	return e.timeline.List(orderID)
}

// AddLineItem добавляет позицию в заказ по снимку каталога. Цена и
// название фиксируются в момент добавления.
func (e *Engine) AddLineItem(actor domain.Actor, orderID, variantID string, qty int32) (domain.Order, error) {
	if qty <= 0 {
		return domain.Order{}, domain.ErrItemQtyInvalid
	}
	var changes planChanges
	return e.updateCompensating(actor, orderID, func(order *domain.Order) error {
		changes.reset()
		if !order.Mutable() {
			return domain.ErrOrderImmutable
		}
		variant, err := e.catalog.Variant(variantID)
		if err != nil {
			return fmt.Errorf("lookup variant %s: %w", variantID, err)
		}

		if item := order.ItemByVariant(variantID); item != nil {
			item.Qty += qty
		} else {
			order.Items = append(order.Items, domain.LineItem{
				ID:             uuid.NewString(),
				OrderID:        order.ID,
				VariantID:      variant.ID,
				SKU:            variant.SKU,
				Name:           variant.Name,
				UnitPriceMinor: variant.PriceMinor,
				Qty:            qty,
				CreatedAt:      time.Now().UTC(),
			})
		}
		return e.afterItemsChanged(actor, order, &changes)
	}, func() {
		e.undoPlanning(actor, orderID, &changes)
	})
}

// SetQuantity меняет количество позиции; ноль удаляет позицию.
func (e *Engine) SetQuantity(actor domain.Actor, orderID, variantID string, qty int32) (domain.Order, error) {
	if qty < 0 {
		return domain.Order{}, domain.ErrItemQtyInvalid
	}
	var changes planChanges
	return e.updateCompensating(actor, orderID, func(order *domain.Order) error {
		changes.reset()
		if !order.Mutable() {
			return domain.ErrOrderImmutable
		}
		item := order.ItemByVariant(variantID)
		if item == nil {
			return fmt.Errorf("variant %s: %w", variantID, domain.ErrVariantNotFound)
		}
		if qty == 0 {
			kept := order.Items[:0]
			for i := range order.Items {
				if order.Items[i].VariantID != variantID {
					kept = append(kept, order.Items[i])
				}
			}
			order.Items = kept
		} else {
			item.Qty = qty
		}
		return e.afterItemsChanged(actor, order, &changes)
	}, func() {
		e.undoPlanning(actor, orderID, &changes)
	})
}

// planChanges копит складские эффекты одной попытки мутации заказа.
// При конфликте версий попытка повторяется над свежей копией, а её
// эффекты откатываются: иначе резерв задваивался бы.
type planChanges struct {
	reserved []fulfillment.Allocation
	released []fulfillment.Allocation
}

func (c *planChanges) reset() {
	c.reserved, c.released = nil, nil
}

// undoPlanning возвращает сток к состоянию до неудачной попытки: новые
// резервы снимаются, снятые — восстанавливаются.
func (e *Engine) undoPlanning(actor domain.Actor, orderID string, changes *planChanges) {
	e.planner.Undo(actor, orderID, changes.reserved)
	e.planner.Restore(actor, orderID, changes.released)
	changes.reset()
}

// afterItemsChanged приводит заказ в согласованное состояние после
// изменения состава: при уже выбранной доставке план строится заново,
// затем пересчитываются корректировки.
func (e *Engine) afterItemsChanged(actor domain.Actor, order *domain.Order, changes *planChanges) error {
	if order.Status == domain.OrderStatusDeliverySelected {
		if err := e.replan(actor, order, changes); err != nil {
			return err
		}
	}
	return e.pricing.Recompute(order)
}

// replan сбрасывает активные отгрузки и строит план заново.
func (e *Engine) replan(actor domain.Actor, order *domain.Order, changes *planChanges) error {
	for i := range order.Shipments {
		s := &order.Shipments[i]
		if s.Active() {
			released, err := e.planner.Release(actor, order, s.ID)
			changes.released = append(changes.released, released...)
			if err != nil {
				return fmt.Errorf("release shipment %s: %w", s.ID, err)
			}
		}
	}
	reserved, err := e.planner.Plan(actor, order, "")
	changes.reserved = append(changes.reserved, reserved...)
	return err
}

// SetAddress устанавливает адрес доставки; из корзины заказ переходит
// в address_set.
func (e *Engine) SetAddress(actor domain.Actor, orderID string, address domain.Address) (domain.Order, error) {
	return e.update(actor, orderID, func(order *domain.Order) error {
		if !order.Mutable() {
			return domain.ErrOrderImmutable
		}
		if !address.Valid() {
			return domain.ErrAddressInvalid
		}
		order.ShipAddress = address
		if order.Status == domain.OrderStatusCart {
			return e.transition(actor, order, domain.OrderStatusAddressSet, "")
		}
		order.UpdatedAt = time.Now().UTC()
		return nil
	})
}

// SelectDelivery строит план отгрузок и резервирует сток. Повторный
// вызов перестраивает покрытие без двойного резерва.
func (e *Engine) SelectDelivery(actor domain.Actor, orderID, strategyName string) (domain.Order, error) {
	var changes planChanges
	return e.updateCompensating(actor, orderID, func(order *domain.Order) error {
		changes.reset()
		switch order.Status {
		case domain.OrderStatusAddressSet, domain.OrderStatusDeliverySelected:
		default:
			return fmt.Errorf("%s: %w", order.Status, domain.ErrTransitionBlocked)
		}
		if len(order.Items) == 0 {
			return domain.ErrItemQtyInvalid
		}

		if err := e.pricing.Recompute(order); err != nil {
			return err
		}
		reserved, err := e.planner.Plan(actor, order, strategyName)
		if err != nil {
			if e.metrics != nil {
				e.metrics.RecordPlanFailed()
			}
			return err
		}
		changes.reserved = reserved
		if e.metrics != nil {
			e.metrics.RecordPlanBuilt()
		}

		if order.Status == domain.OrderStatusAddressSet {
			return e.transition(actor, order, domain.OrderStatusDeliverySelected, "")
		}
		return nil
	}, func() {
		e.undoPlanning(actor, orderID, &changes)
	})
}

// SelectPayment авторизует оплату выбранным способом. Когда остаток к
// оплате покрыт, заказ переходит в payment_selected. Вызов шлюза несёт
// idempotency-key, поэтому при таймауте платёж остаётся pending и
// сохраняется: повтор не создаст вторую авторизацию.
func (e *Engine) SelectPayment(actor domain.Actor, orderID, methodCode string, amountMinor int64) (domain.Order, error) {
	if !actor.Valid() {
		return domain.Order{}, domain.ErrActorRequired
	}
	order, err := e.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	switch order.Status {
	case domain.OrderStatusDeliverySelected, domain.OrderStatusPaymentSelected:
	default:
		return domain.Order{}, fmt.Errorf("%s: %w", order.Status, domain.ErrTransitionBlocked)
	}

	_, authErr := e.payments.Authorize(actor, &order, methodCode, amountMinor)
	if authErr != nil && !domain.IsRetryableExternal(authErr) && !domain.IsTerminalExternal(authErr) {
		// Заказ не изменился: ошибка до обращения к шлюзу.
		return domain.Order{}, authErr
	}

	if authErr == nil && order.UnpaidBalanceMinor() == 0 && order.Status == domain.OrderStatusDeliverySelected {
		if err := e.transition(actor, &order, domain.OrderStatusPaymentSelected, ""); err != nil {
			return domain.Order{}, err
		}
	}

	// Платёж сохраняется и при сбое шлюза: pending-платёж хранит
	// idempotency-key для безопасного повтора.
	if err := e.save(&order); err != nil {
		return domain.Order{}, err
	}
	return order, authErr
}

// RetryPayment повторяет авторизацию pending-платежа после сбоя шлюза.
func (e *Engine) RetryPayment(actor domain.Actor, orderID, paymentID string) (domain.Order, error) {
	if !actor.Valid() {
		return domain.Order{}, domain.ErrActorRequired
	}
	order, err := e.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	_, retryErr := e.payments.Retry(actor, &order, paymentID)
	if retryErr != nil && !domain.IsRetryableExternal(retryErr) && !domain.IsTerminalExternal(retryErr) {
		return domain.Order{}, retryErr
	}

	if retryErr == nil && order.UnpaidBalanceMinor() == 0 && order.Status == domain.OrderStatusDeliverySelected {
		if err := e.transition(actor, &order, domain.OrderStatusPaymentSelected, ""); err != nil {
			return domain.Order{}, err
		}
	}
	if err := e.save(&order); err != nil {
		return domain.Order{}, err
	}
	return order, retryErr
}

// ApplyPromotion применяет акцию по коду купона.
func (e *Engine) ApplyPromotion(actor domain.Actor, orderID, code string) (domain.Order, error) {
	return e.update(actor, orderID, func(order *domain.Order) error {
		if !order.Mutable() {
			return domain.ErrOrderImmutable
		}
		return e.pricing.ApplyPromotion(actor, order, code)
	})
}

// Confirm фиксирует заказ: корректировки пересчитаны, все платежи
// авторизованы либо списаны, остаток к оплате нулевой.
func (e *Engine) Confirm(actor domain.Actor, orderID string) (domain.Order, error) {
	return e.update(actor, orderID, func(order *domain.Order) error {
		if order.Status != domain.OrderStatusPaymentSelected {
			return fmt.Errorf("%s: %w", order.Status, domain.ErrTransitionBlocked)
		}
		if err := e.pricing.Recompute(order); err != nil {
			return err
		}
		for i := range order.Payments {
			p := &order.Payments[i]
			if p.Status == domain.PaymentStatusPending {
				return fmt.Errorf("payment %s is pending: %w", p.ID, domain.ErrPaymentStateInvalid)
			}
		}
		if order.UnpaidBalanceMinor() != 0 {
			return fmt.Errorf("unpaid balance %d: %w", order.UnpaidBalanceMinor(), domain.ErrTransitionBlocked)
		}
		return e.transition(actor, order, domain.OrderStatusConfirmed, "")
	})
}

// Complete завершает заказ: платежи списываются (кроме отложенных
// способов), хотя бы одна отгрузка должна быть готова. После завершения
// заказ неизменяем.
func (e *Engine) Complete(actor domain.Actor, orderID string) (domain.Order, error) {
	if !actor.Valid() {
		return domain.Order{}, domain.ErrActorRequired
	}
	order, err := e.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusConfirmed {
		return domain.Order{}, fmt.Errorf("%s: %w", order.Status, domain.ErrTransitionBlocked)
	}

	var ready bool
	for i := range order.Shipments {
		if order.Shipments[i].Status == domain.ShipmentStatusReady ||
			order.Shipments[i].Status == domain.ShipmentStatusShipped {
			ready = true
			break
		}
	}
	if !ready {
		return domain.Order{}, fmt.Errorf("no shipment is ready: %w", domain.ErrTransitionBlocked)
	}

	// Списание до перехода: при сбое шлюза заказ остаётся confirmed.
	if err := e.payments.SettleForCompletion(actor, &order); err != nil {
		if saveErr := e.save(&order); saveErr != nil {
			e.logger.WithError(saveErr).WithField("order_id", order.ID).Error("save after settle failure")
		}
		return domain.Order{}, err
	}

	if err := e.transition(actor, &order, domain.OrderStatusComplete, ""); err != nil {
		return domain.Order{}, err
	}
	order.Record(domain.Event{
		Type:  domain.EventOrderCompleted,
		Actor: actor.String(),
		Payload: map[string]any{
			"total_minor": order.TotalMinor,
		},
	})
	if err := e.save(&order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// Cancel отменяет заказ до завершения: резерв возвращается на склады,
// авторизации отменяются, списания возвращаются. Если часть отгрузок
// уже передана перевозчику, заказ получает статус partially_returned.
func (e *Engine) Cancel(actor domain.Actor, orderID, reason string) (domain.Order, error) {
	if !actor.Valid() {
		return domain.Order{}, domain.ErrActorRequired
	}
	order, err := e.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == domain.OrderStatusComplete {
		return domain.Order{}, fmt.Errorf("complete order: %w", domain.ErrTransitionBlocked)
	}
	if order.Status.Terminal() {
		return domain.Order{}, fmt.Errorf("%s: %w", order.Status, domain.ErrTransitionBlocked)
	}

	var shipped bool
	for i := range order.Shipments {
		s := &order.Shipments[i]
		switch s.Status {
		case domain.ShipmentStatusShipped:
			shipped = true
		case domain.ShipmentStatusPending, domain.ShipmentStatusReady:
			if _, err := e.planner.Release(actor, &order, s.ID); err != nil {
				return domain.Order{}, fmt.Errorf("release shipment %s: %w", s.ID, err)
			}
		}
	}
	if err := e.payments.ReleaseAll(actor, &order); err != nil {
		return domain.Order{}, err
	}

	target := domain.OrderStatusCanceled
	if shipped {
		// Уехавшие отгрузки не отменить: часть заказа состоялась.
		target = domain.OrderStatusPartiallyReturned
	}
	if err := e.transition(actor, &order, target, reason); err != nil {
		return domain.Order{}, err
	}
	order.Record(domain.Event{
		Type:  domain.EventOrderCanceled,
		Actor: actor.String(),
		Payload: map[string]any{
			"reason": reason,
			"status": string(target),
		},
	})
	if err := e.save(&order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// Return оформляет полный возврат завершённого заказа: все платежи
// возвращаются, неотгруженный резерв освобождается.
func (e *Engine) Return(actor domain.Actor, orderID, reason string) (domain.Order, error) {
	if !actor.Valid() {
		return domain.Order{}, domain.ErrActorRequired
	}
	order, err := e.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusComplete {
		return domain.Order{}, fmt.Errorf("%s: %w", order.Status, domain.ErrTransitionBlocked)
	}

	for i := range order.Shipments {
		s := &order.Shipments[i]
		if s.Active() {
			if _, err := e.planner.Release(actor, &order, s.ID); err != nil {
				return domain.Order{}, fmt.Errorf("release shipment %s: %w", s.ID, err)
			}
		}
	}
	if err := e.payments.ReleaseAll(actor, &order); err != nil {
		return domain.Order{}, err
	}

	if err := e.transition(actor, &order, domain.OrderStatusReturned, reason); err != nil {
		return domain.Order{}, err
	}
	order.Record(domain.Event{
		Type:  domain.EventOrderReturned,
		Actor: actor.String(),
		Payload: map[string]any{
			"reason": reason,
		},
	})
	if err := e.save(&order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// ReturnPartial возвращает часть суммы завершённого заказа.
func (e *Engine) ReturnPartial(actor domain.Actor, orderID string, amountMinor int64, reason string) (domain.Order, error) {
	if !actor.Valid() {
		return domain.Order{}, domain.ErrActorRequired
	}
	if amountMinor <= 0 {
		return domain.Order{}, domain.ErrPaymentAmountInvalid
	}
	order, err := e.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	switch order.Status {
	case domain.OrderStatusComplete, domain.OrderStatusPartiallyReturned:
	default:
		return domain.Order{}, fmt.Errorf("%s: %w", order.Status, domain.ErrTransitionBlocked)
	}

	remaining := amountMinor
	for i := range order.Payments {
		if remaining == 0 {
			break
		}
		p := &order.Payments[i]
		var refundable int64
		switch p.Status {
		case domain.PaymentStatusCaptured, domain.PaymentStatusPartiallyRefunded:
			refundable = p.AmountMinor - p.RefundedMinor
		}
		if refundable == 0 {
			continue
		}
		amount := refundable
		if amount > remaining {
			amount = remaining
		}
		if err := e.payments.Refund(actor, &order, p.ID, amount); err != nil {
			return domain.Order{}, err
		}
		remaining -= amount
	}
	if remaining > 0 {
		return domain.Order{}, fmt.Errorf("refundable shortfall %d: %w", remaining, domain.ErrRefundOutOfRange)
	}

	if order.Status == domain.OrderStatusComplete {
		if err := e.transition(actor, &order, domain.OrderStatusPartiallyReturned, reason); err != nil {
			return domain.Order{}, err
		}
	}
	if err := e.save(&order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// MarkShipmentReady отмечает собранную отгрузку готовой к передаче.
func (e *Engine) MarkShipmentReady(actor domain.Actor, orderID, shipmentID string) (domain.Order, error) {
	return e.update(actor, orderID, func(order *domain.Order) error {
		shipment := order.Shipment(shipmentID)
		if shipment == nil {
			return domain.ErrShipmentNotFound
		}
		if shipment.Status != domain.ShipmentStatusPending {
			return fmt.Errorf("shipment %s is %s: %w", shipmentID, shipment.Status, domain.ErrShipmentNotPending)
		}
		shipment.Status = domain.ShipmentStatusReady
		shipment.UpdatedAt = time.Now().UTC()
		return nil
	})
}

// MarkShipmentShipped передаёт готовую отгрузку перевозчику: резерв
// списывается в расход, фиксируется трек-номер.
func (e *Engine) MarkShipmentShipped(actor domain.Actor, orderID, shipmentID, trackingNumber string) (domain.Order, error) {
	if !actor.Valid() {
		return domain.Order{}, domain.ErrActorRequired
	}
	order, err := e.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	shipment := order.Shipment(shipmentID)
	if shipment == nil {
		return domain.Order{}, domain.ErrShipmentNotFound
	}
	if shipment.Status != domain.ShipmentStatusReady {
		return domain.Order{}, fmt.Errorf("shipment %s is %s: %w", shipmentID, shipment.Status, domain.ErrShipmentNotPending)
	}

	for _, it := range shipment.Items {
		if _, err := e.ledger.Ship(actor, it.VariantID, shipment.LocationID, it.Qty, order.ID); err != nil {
			return domain.Order{}, fmt.Errorf("ship %d of %s: %w", it.Qty, it.VariantID, err)
		}
	}
	shipment.Status = domain.ShipmentStatusShipped
	shipment.TrackingNumber = trackingNumber
	shipment.UpdatedAt = time.Now().UTC()
	order.Record(domain.Event{
		Type:  domain.EventShipmentShipped,
		Actor: actor.String(),
		Payload: map[string]any{
			"shipment_id":     shipmentID,
			"tracking_number": trackingNumber,
		},
	})
	if err := e.save(&order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// HandleWebhook применяет асинхронное событие платёжного шлюза. Заказ
// находится по референсу провайдера; событие с неизвестным референсом
// отбрасывается с записью в журнал.
func (e *Engine) HandleWebhook(event domain.WebhookEvent) (domain.Order, error) {
	order, err := e.orders.ByPaymentRef(event.GatewayRef)
	if err != nil {
		e.logger.WithFields(log.Fields{
			"provider":    event.Provider,
			"event_id":    event.EventID,
			"gateway_ref": event.GatewayRef,
		}).Warn("webhook for unknown gateway ref dropped")
		return domain.Order{}, err
	}

	if err := e.payments.HandleWebhook(&order, event); err != nil {
		return domain.Order{}, err
	}
	if err := e.save(&order); err != nil {
		return domain.Order{}, err
	}
	// Доставка подтверждается после коммита: при сбое сохранения шлюз
	// доставит событие повторно, и оно применится заново.
	e.payments.MarkWebhookProcessed(event)
	return order, nil
}

// update загружает заказ, применяет мутацию и сохраняет, повторяя до
// maxSaveAttempts раз при конфликте версий. Мутация не должна иметь
// внешних неидемпотентных эффектов: при конфликте она выполняется заново
// над свежей копией заказа.
func (e *Engine) update(actor domain.Actor, orderID string, mutate func(*domain.Order) error) (domain.Order, error) {
	return e.updateCompensating(actor, orderID, mutate, nil)
}

// updateCompensating — update для мутаций со складскими эффектами:
// compensate откатывает эффекты неудачной попытки перед повтором и перед
// возвратом ошибки, чтобы несохранённый заказ не удерживал резерв.
func (e *Engine) updateCompensating(actor domain.Actor, orderID string, mutate func(*domain.Order) error, compensate func()) (domain.Order, error) {
	if !actor.Valid() {
		return domain.Order{}, domain.ErrActorRequired
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		order, err := e.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}
		if err := mutate(&order); err != nil {
			if compensate != nil {
				compensate()
			}
			return domain.Order{}, err
		}

		err = e.orders.Save(order)
		if err == nil {
			order.Version++
			e.dispatch(&order)
			return order, nil
		}
		if !domain.IsVersionConflict(err) {
			if compensate != nil {
				compensate()
			}
			return domain.Order{}, fmt.Errorf("save order: %w", err)
		}
		if compensate != nil {
			compensate()
		}
		e.logger.WithFields(log.Fields{
			"order_id": orderID,
			"attempt":  attempt + 1,
		}).Warn("order version conflict, retrying")
		time.Sleep(saveBaseDelay * time.Duration(1<<uint(attempt)))
	}
	return domain.Order{}, domain.ErrVersionConflict
}

// save сохраняет заказ без повторов: вызывается после операций с
// внешними эффектами, где повторная мутация небезопасна.
func (e *Engine) save(order *domain.Order) error {
	if err := e.orders.Save(*order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	order.Version++
	e.dispatch(order)
	return nil
}

// transition продвигает state machine заказа с проверкой допустимости.
func (e *Engine) transition(actor domain.Actor, order *domain.Order, to domain.OrderStatus, reason string) error {
	if !order.Status.CanTransition(to) {
		if e.metrics != nil {
			e.metrics.RecordTransitionFailure(string(to))
		}
		return fmt.Errorf("%s -> %s: %w", order.Status, to, domain.ErrTransitionBlocked)
	}
	started := time.Now()
	from := order.Status
	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	order.Record(domain.Event{
		Type:  domain.EventOrderStatusChanged,
		Actor: actor.String(),
		Payload: map[string]any{
			"from":   string(from),
			"to":     string(to),
			"reason": reason,
		},
	})
	if e.metrics != nil {
		e.metrics.RecordTransition(string(to))
		e.metrics.RecordTransitionDuration(string(to), time.Since(started))
	}
	return nil
}

// dispatch сбрасывает накопленные события заказа в outbox и timeline.
// Вызывается строго после успешного сохранения; ошибки доставки
// журналируются и не откатывают уже сохранённый заказ.
func (e *Engine) dispatch(order *domain.Order) {
	for _, event := range order.DrainEvents() {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			e.logger.WithError(err).WithField("event_type", event.Type).Error("marshal event payload")
			payload = []byte("{}")
		}

		if _, err := e.outbox.Enqueue(domain.OutboxMessage{
			ID:            uuid.NewString(),
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			EventType:     string(event.Type),
			Payload:       payload,
		}); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"event_type": event.Type,
			}).Error("outbox enqueue failed")
		} else if e.metrics != nil {
			e.metrics.RecordOutboxEvent()
		}

		reason := ""
		if r, ok := event.Payload["reason"].(string); ok {
			reason = r
		}
		if err := e.timeline.Append(domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     string(event.Type),
			Actor:    event.Actor,
			Reason:   reason,
			Occurred: event.OccurredAt,
		}); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"event_type": event.Type,
			}).Error("timeline append failed")
		} else if e.metrics != nil {
			e.metrics.RecordTimelineEvent()
		}
	}
}
