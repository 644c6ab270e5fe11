package domain

import "time"

// StockItem — учётная запись стока: пара (вариант, склад) с текущим
// наличием и резервом. Инвариант: 0 <= Reserved <= OnHand.
type StockItem struct {
	ID         string
	VariantID  string
	LocationID string
	OnHand     int32
	Reserved   int32
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AvailableQty — количество, доступное новым заказам.
func (s *StockItem) AvailableQty() int32 {
	return s.OnHand - s.Reserved
}

// ValidateInvariants проверяет границы резерва и наличия.
func (s *StockItem) ValidateInvariants() []error {
	var errs []error

	if s.VariantID == "" {
		errs = append(errs, ErrVariantRequired)
	}
	if s.LocationID == "" {
		errs = append(errs, ErrLocationRequired)
	}
	if s.OnHand < 0 {
		errs = append(errs, ErrStockNegative)
	}
	if s.Reserved < 0 || s.Reserved > s.OnHand {
		errs = append(errs, ErrReservedOutOfRange)
	}

	return errs
}

// MovementOriginator — инициатор складского движения.
type MovementOriginator string

const (
	MovementOriginatorOrder    MovementOriginator = "order"
	MovementOriginatorTransfer MovementOriginator = "transfer"
	MovementOriginatorManual   MovementOriginator = "manual"
)

// Причины складских движений для журнала.
const (
	MovementReasonReceive     = "receive"
	MovementReasonReservation = "reservation"
	MovementReasonRelease     = "release"
	MovementReasonShip        = "ship"
	MovementReasonTransfer    = "transfer"
	MovementReasonAdjustment  = "adjustment"
)

// StockMovement — неизменяемая запись журнала движений стока.
// Сумма QtyDelta всех движений учётной записи равна её OnHand.
type StockMovement struct {
	ID          string
	StockItemID string
	// QtyDelta — изменение наличия (OnHand).
	QtyDelta int32
	// ReservedDelta — изменение резерва; для чистых резервирований
	// QtyDelta равен нулю.
	ReservedDelta int32
	Originator    MovementOriginator
	// ReferenceID — идентификатор заказа, трансфера или операции-источника.
	ReferenceID string
	Reason      string
	// Actor — явная личность инициатора операции для аудита.
	Actor     string
	CreatedAt time.Time
}

// Validate проверяет обязательные поля движения.
func (m *StockMovement) Validate() []error {
	var errs []error

	if m.StockItemID == "" {
		errs = append(errs, ErrStockItemRequired)
	}
	if m.QtyDelta == 0 && m.ReservedDelta == 0 {
		errs = append(errs, ErrMovementEmpty)
	}
	if m.Originator == "" {
		errs = append(errs, ErrMovementOriginatorRequired)
	}

	return errs
}

// StockLocation — склад. Ядро использует только идентификатор и ранг
// близости, остальные атрибуты принадлежат внешней админке.
type StockLocation struct {
	ID   string
	Name string
	// ProximityRank используется стратегией nearest-location: меньше — ближе.
	ProximityRank int32
	Active        bool
}
