package domain

import "time"

// AdjustmentLevel указывает, к чему привязана корректировка: к позиции или к заказу.
type AdjustmentLevel string

const (
	AdjustmentLevelLine  AdjustmentLevel = "line"
	AdjustmentLevelOrder AdjustmentLevel = "order"
)

// Adjustment — знаковая денежная поправка к позиции или заказу.
// Отрицательная сумма — скидка, положительная — налог или сбор.
type Adjustment struct {
	ID      string
	OrderID string
	// LineItemID заполнен только для корректировок уровня позиции.
	LineItemID string
	Level      AdjustmentLevel
	// PromotionID связывает корректировку с породившей её промоакцией.
	// Пустое значение означает ручную корректировку или налог: такие
	// записи никогда не удаляются автоматически.
	PromotionID string
	Label       string
	AmountMinor int64
	// Eligible выключает корректировку без удаления, пока условия акции
	// не выполняются. Неактивные корректировки не входят в суммы.
	Eligible  bool
	CreatedAt time.Time
}

// PromotionSourced сообщает, создана ли корректировка промоакцией.
func (a *Adjustment) PromotionSourced() bool {
	return a.PromotionID != ""
}

// PromotionKind — вид расчёта скидки промоакции.
type PromotionKind string

const (
	// PromotionKindPercent — процент от subtotal, в базисных пунктах (1000 = 10%).
	PromotionKindPercent PromotionKind = "percent"
	// PromotionKindFixed — фиксированная сумма в минимальных единицах.
	PromotionKindFixed PromotionKind = "fixed"
)

// Promotion — снимок промоакции, возвращаемый коллаборатором правил.
// Ядро не хранит и не редактирует акции, только применяет их эффекты.
type Promotion struct {
	ID          string
	Code        string
	Description string
	// Priority определяет порядок применения: меньше — раньше.
	Priority int32
	// Combinable разрешает сочетание с другими combinable-акциями.
	// Не-combinable акция всегда действует одна.
	Combinable bool
	Level      AdjustmentLevel
	Kind       PromotionKind
	// PercentBps — размер скидки в базисных пунктах для kind=percent.
	PercentBps int64
	// AmountMinor — размер скидки для kind=fixed.
	AmountMinor int64
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired проверяет срок действия акции на момент now.
func (p Promotion) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
