package domain

import "time"

// OrderStatus описывает шаг checkout-процесса заказа.
type OrderStatus string

const (
	// OrderStatusCart — заказ существует как корзина, позиции можно менять свободно.
	OrderStatusCart OrderStatus = "cart"
	// OrderStatusAddressSet — указан корректный адрес доставки.
	OrderStatusAddressSet OrderStatus = "address_set"
	// OrderStatusDeliverySelected — построен план отгрузок, сток зарезервирован.
	OrderStatusDeliverySelected OrderStatus = "delivery_selected"
	// OrderStatusPaymentSelected — есть платежи, покрывающие остаток к оплате.
	OrderStatusPaymentSelected OrderStatus = "payment_selected"
	// OrderStatusConfirmed — все платежи авторизованы, корректировки пересчитаны.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusComplete — оплата списана, хотя бы одна отгрузка готова. Заказ неизменяем.
	OrderStatusComplete OrderStatus = "complete"
	// OrderStatusCanceled — заказ отменён до завершения.
	OrderStatusCanceled OrderStatus = "canceled"
	// OrderStatusReturned — завершённый заказ полностью возвращён.
	OrderStatusReturned OrderStatus = "returned"
	// OrderStatusPartiallyReturned — часть отгрузок уже ушла, остальное возвращено.
	OrderStatusPartiallyReturned OrderStatus = "partially_returned"
)

// forwardOf задаёт единственный допустимый следующий шаг checkout.
var forwardOf = map[OrderStatus]OrderStatus{
	OrderStatusCart:             OrderStatusAddressSet,
	OrderStatusAddressSet:       OrderStatusDeliverySelected,
	OrderStatusDeliverySelected: OrderStatusPaymentSelected,
	OrderStatusPaymentSelected:  OrderStatusConfirmed,
	OrderStatusConfirmed:        OrderStatusComplete,
}

// Terminal сообщает, является ли статус конечным: из него нет переходов.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCanceled, OrderStatusReturned, OrderStatusPartiallyReturned:
		return true
	default:
		return false
	}
}

// CanTransition проверяет допустимость перехода без учёта guard-условий.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	switch to {
	case OrderStatusCanceled:
		// Отмена доступна из любого состояния до завершения.
		return s != OrderStatusComplete
	case OrderStatusReturned:
		// Полный возврат возможен только после завершения заказа.
		return s == OrderStatusComplete
	case OrderStatusPartiallyReturned:
		// Частичный возврат: либо после завершения, либо отмена заказа,
		// часть отгрузок которого уже передана перевозчику.
		return true
	default:
		return forwardOf[s] == to
	}
}

// Address — адрес доставки, необходимый для перехода в address_set.
type Address struct {
	Line1      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Valid проверяет минимальную полноту адреса.
func (a Address) Valid() bool {
	return a.Line1 != "" && a.City != "" && a.Country != ""
}

// LineItem — одна позиция заказа. Цена и название фиксируются в момент
// добавления и не зависят от последующих изменений каталога.
type LineItem struct {
	ID        string
	OrderID   string
	VariantID string
	SKU       string
	Name      string
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах.
	UnitPriceMinor int64
	Qty            int32
	Adjustments    []Adjustment
	CreatedAt      time.Time
}

// SubtotalMinor возвращает qty * цена без учёта корректировок.
func (li *LineItem) SubtotalMinor() int64 {
	return int64(li.Qty) * li.UnitPriceMinor
}

// AdjustmentTotalMinor — сумма действующих корректировок позиции.
func (li *LineItem) AdjustmentTotalMinor() int64 {
	var sum int64
	for _, adj := range li.Adjustments {
		if adj.Eligible {
			sum += adj.AmountMinor
		}
	}
	return sum
}

// TotalMinor — итог позиции: subtotal плюс корректировки.
func (li *LineItem) TotalMinor() int64 {
	return li.SubtotalMinor() + li.AdjustmentTotalMinor()
}

// Order агрегирует позиции, корректировки, отгрузки и платежи заказа.
// Заказ — единственный владелец этих коллекций.
type Order struct {
	ID          string
	CustomerID  string
	Status      OrderStatus
	Currency    string
	ShipAddress Address

	Items       []LineItem
	Adjustments []Adjustment // корректировки уровня заказа
	Shipments   []Shipment
	Payments    []Payment

	// Производные суммы; пересчитываются через RecomputeTotals.
	ItemTotalMinor       int64
	AdjustmentTotalMinor int64
	ShipmentTotalMinor   int64
	TotalMinor           int64

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	// pending накапливает доменные события до коммита транзакции.
	pending []Event
}

// RecomputeTotals пересчитывает все производные суммы заказа.
// AdjustmentTotalMinor включает корректировки заказа и всех позиций.
func (o *Order) RecomputeTotals() {
	var itemTotal, adjTotal, shipTotal int64
	for i := range o.Items {
		itemTotal += o.Items[i].SubtotalMinor()
		adjTotal += o.Items[i].AdjustmentTotalMinor()
	}
	for _, adj := range o.Adjustments {
		if adj.Eligible {
			adjTotal += adj.AmountMinor
		}
	}
	for i := range o.Shipments {
		if o.Shipments[i].Status != ShipmentStatusCanceled {
			shipTotal += o.Shipments[i].CostMinor
		}
	}
	o.ItemTotalMinor = itemTotal
	o.AdjustmentTotalMinor = adjTotal
	o.ShipmentTotalMinor = shipTotal
	o.TotalMinor = itemTotal + adjTotal + shipTotal
}

// ValidateInvariants проверяет денежные инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}

	var itemTotal, lineAdj int64
	for i := range o.Items {
		item := &o.Items[i]
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		itemTotal += item.SubtotalMinor()
		lineAdj += item.AdjustmentTotalMinor()
	}

	var orderAdj int64
	for _, adj := range o.Adjustments {
		if adj.Eligible {
			orderAdj += adj.AmountMinor
		}
	}
	// Сверяем производные суммы с фактическим содержимым коллекций.
	if o.AdjustmentTotalMinor != orderAdj+lineAdj {
		errs = append(errs, ErrAdjustmentTotalMismatch)
	}
	if o.TotalMinor != itemTotal+o.AdjustmentTotalMinor+o.ShipmentTotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// Item возвращает позицию по идентификатору или nil.
func (o *Order) Item(id string) *LineItem {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i]
		}
	}
	return nil
}

// ItemByVariant возвращает позицию по варианту товара или nil.
func (o *Order) ItemByVariant(variantID string) *LineItem {
	for i := range o.Items {
		if o.Items[i].VariantID == variantID {
			return &o.Items[i]
		}
	}
	return nil
}

// Shipment возвращает отгрузку по идентификатору или nil.
func (o *Order) Shipment(id string) *Shipment {
	for i := range o.Shipments {
		if o.Shipments[i].ID == id {
			return &o.Shipments[i]
		}
	}
	return nil
}

// Payment возвращает платёж по идентификатору или nil.
func (o *Order) Payment(id string) *Payment {
	for i := range o.Payments {
		if o.Payments[i].ID == id {
			return &o.Payments[i]
		}
	}
	return nil
}

// PaidMinor — сумма, покрытая авторизованными и списанными платежами,
// за вычетом возвратов.
func (o *Order) PaidMinor() int64 {
	var paid int64
	for i := range o.Payments {
		p := &o.Payments[i]
		switch p.Status {
		case PaymentStatusAuthorized, PaymentStatusCaptured:
			paid += p.AmountMinor
		case PaymentStatusPartiallyRefunded:
			paid += p.AmountMinor - p.RefundedMinor
		}
	}
	return paid
}

// UnpaidBalanceMinor — остаток к оплате; не бывает отрицательным.
func (o *Order) UnpaidBalanceMinor() int64 {
	balance := o.TotalMinor - o.PaidMinor()
	if balance < 0 {
		return 0
	}
	return balance
}

// Mutable сообщает, допускает ли заказ изменение состава позиций.
// После выбора оплаты заказ движется только по state machine.
func (o *Order) Mutable() bool {
	switch o.Status {
	case OrderStatusCart, OrderStatusAddressSet, OrderStatusDeliverySelected:
		return true
	default:
		return false
	}
}
