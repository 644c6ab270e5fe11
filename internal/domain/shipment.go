package domain

import "time"

// ShipmentStatus — жизненный цикл отгрузки.
type ShipmentStatus string

const (
	// ShipmentStatusPending — отгрузка создана планировщиком, сток зарезервирован.
	ShipmentStatusPending ShipmentStatus = "pending"
	// ShipmentStatusReady — отгрузка собрана и готова к передаче перевозчику.
	ShipmentStatusReady ShipmentStatus = "ready"
	// ShipmentStatusShipped — отгрузка передана перевозчику; резерв списан в расход.
	ShipmentStatusShipped ShipmentStatus = "shipped"
	// ShipmentStatusCanceled — отгрузка отменена, резерв возвращён.
	ShipmentStatusCanceled ShipmentStatus = "canceled"
)

// ShipmentItem — количество конкретного варианта внутри отгрузки.
type ShipmentItem struct {
	LineItemID string
	VariantID  string
	Qty        int32
}

// Shipment — подмножество позиций заказа, закреплённое за одним складом.
// Ссылка на склад не владеющая: склад живёт независимо от заказа.
type Shipment struct {
	ID         string
	OrderID    string
	LocationID string
	Status     ShipmentStatus
	// CostMinor — стоимость доставки этой отгрузки.
	CostMinor      int64
	TrackingNumber string
	Items          []ShipmentItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Qty возвращает зарезервированное отгрузкой количество варианта.
func (s *Shipment) Qty(variantID string) int32 {
	var qty int32
	for _, it := range s.Items {
		if it.VariantID == variantID {
			qty += it.Qty
		}
	}
	return qty
}

// Active сообщает, удерживает ли отгрузка резерв на складе.
func (s *Shipment) Active() bool {
	return s.Status == ShipmentStatusPending || s.Status == ShipmentStatusReady
}

// Validate проверяет ключевые поля отгрузки.
func (s *Shipment) Validate() []error {
	var errs []error

	if s.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if s.LocationID == "" {
		errs = append(errs, ErrLocationRequired)
	}
	for _, it := range s.Items {
		if it.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
	}

	return errs
}
