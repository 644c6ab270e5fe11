// Package pricing реализует движок корректировок: объяснимую разбивку
// того, почему итог заказа отличается от суммы цен позиций.
package pricing

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Engine пересчитывает корректировки заказа по правилам промоакций.
// Все суммы — целые минимальные единицы; скидки округляются вниз
// (к минус-бесконечности), чтобы мерчант не недополучил единицу.
type Engine struct {
	promotions domain.PromotionService
	logger     *log.Entry
	now        func() time.Time
}

// NewEngine создаёт движок корректировок.
func NewEngine(promotions domain.PromotionService, logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.New().WithField("component", "pricing")
	}
	return &Engine{
		promotions: promotions,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Recompute перечитывает применимые акции и приводит корректировки заказа
// в согласованное состояние:
//   - все корректировки, порождённые акциями, снимаются и выпускаются заново
//     для актуального состава корзины;
//   - ручные корректировки и налоги (без ссылки на акцию) не трогаются;
//   - производные суммы пересчитываются.
func (e *Engine) Recompute(order *domain.Order) error {
	eligible, err := e.promotions.Eligible(*order)
	if err != nil {
		return fmt.Errorf("evaluate promotions: %w", err)
	}

	active := selectActive(eligible)
	e.clearPromotionAdjustments(order)
	for _, promo := range active {
		e.emitAdjustments(order, promo)
	}
	order.RecomputeTotals()

	if errs := order.ValidateInvariants(); len(errs) != 0 {
		// Несошедшиеся суммы после пересчёта — внутренний дефект движка.
		return fmt.Errorf("recompute left order inconsistent: %v: %w", errs, domain.ErrTotalMismatch)
	}
	return nil
}

// ApplyPromotion применяет акцию по коду купона. Прежние акционные
// корректировки снимаются, чтобы исключить наложение. При любом отказе
// заказ остаётся без изменений.
func (e *Engine) ApplyPromotion(actor domain.Actor, order *domain.Order, code string) error {
	promo, err := e.promotions.Lookup(code)
	if err != nil {
		return fmt.Errorf("lookup promotion %q: %w", code, err)
	}
	if promo.Expired(e.now()) {
		return fmt.Errorf("promotion %q: %w", code, domain.ErrPromotionExpired)
	}

	// Считаем эффект на копии: заказ мутирует только при успехе.
	candidate := cloneForPricing(order)
	e.clearPromotionAdjustments(&candidate)
	emitted := e.emitAdjustments(&candidate, promo)
	if emitted == 0 {
		return fmt.Errorf("promotion %q: %w", code, domain.ErrPromotionIneligible)
	}
	candidate.RecomputeTotals()

	order.Items = candidate.Items
	order.Adjustments = candidate.Adjustments
	order.RecomputeTotals()
	order.Record(domain.Event{
		Type:  domain.EventPromotionApplied,
		Actor: actor.String(),
		Payload: map[string]any{
			"promotion_id": promo.ID,
			"code":         promo.Code,
		},
	})

	e.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"code":     code,
		"actor":    actor.String(),
	}).Info("promotion applied")
	return nil
}

// selectActive выбирает действующий набор акций: порядок — приоритет,
// затем время создания. Первая подходящая эксклюзивная акция действует
// одна; combinable-акции складываются аддитивно (скидка каждой считается
// от неизменённого subtotal, порядок не влияет на сумму).
func selectActive(eligible []domain.Promotion) []domain.Promotion {
	sorted := make([]domain.Promotion, len(eligible))
	copy(sorted, eligible)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var active []domain.Promotion
	for _, promo := range sorted {
		if !promo.Combinable {
			if len(active) == 0 {
				return []domain.Promotion{promo}
			}
			// Эксклюзивная акция не сочетается с уже выбранными.
			continue
		}
		active = append(active, promo)
	}
	return active
}

// clearPromotionAdjustments удаляет все корректировки, порождённые акциями.
// Ручные корректировки (без PromotionID) сохраняются.
func (e *Engine) clearPromotionAdjustments(order *domain.Order) {
	order.Adjustments = keepManual(order.Adjustments)
	for i := range order.Items {
		order.Items[i].Adjustments = keepManual(order.Items[i].Adjustments)
	}
}

func keepManual(adjustments []domain.Adjustment) []domain.Adjustment {
	kept := adjustments[:0:0]
	for _, adj := range adjustments {
		if !adj.PromotionSourced() {
			kept = append(kept, adj)
		}
	}
	return kept
}

// emitAdjustments выпускает корректировки акции и возвращает их количество.
func (e *Engine) emitAdjustments(order *domain.Order, promo domain.Promotion) int {
	now := e.now()
	emitted := 0

	switch promo.Level {
	case domain.AdjustmentLevelLine:
		for i := range order.Items {
			item := &order.Items[i]
			amount := discountAmount(promo, item.SubtotalMinor())
			if amount == 0 {
				continue
			}
			item.Adjustments = append(item.Adjustments, domain.Adjustment{
				ID:          uuid.NewString(),
				OrderID:     order.ID,
				LineItemID:  item.ID,
				Level:       domain.AdjustmentLevelLine,
				PromotionID: promo.ID,
				Label:       promo.Description,
				AmountMinor: amount,
				Eligible:    true,
				CreatedAt:   now,
			})
			emitted++
		}
	case domain.AdjustmentLevelOrder:
		var itemTotal int64
		for i := range order.Items {
			itemTotal += order.Items[i].SubtotalMinor()
		}
		amount := discountAmount(promo, itemTotal)
		if amount != 0 {
			order.Adjustments = append(order.Adjustments, domain.Adjustment{
				ID:          uuid.NewString(),
				OrderID:     order.ID,
				Level:       domain.AdjustmentLevelOrder,
				PromotionID: promo.ID,
				Label:       promo.Description,
				AmountMinor: amount,
				Eligible:    true,
				CreatedAt:   now,
			})
			emitted++
		}
	}

	return emitted
}

// discountAmount считает знаковую сумму скидки от базы base.
// Скидка не превышает базу: итог позиции не уходит в минус.
func discountAmount(promo domain.Promotion, base int64) int64 {
	if base <= 0 {
		return 0
	}
	var amount int64
	switch promo.Kind {
	case domain.PromotionKindPercent:
		amount = floorDiv(-base*promo.PercentBps, 10000)
	case domain.PromotionKindFixed:
		amount = -promo.AmountMinor
	}
	if amount < -base {
		amount = -base
	}
	if amount > 0 {
		// Акции только уменьшают цену; наценки оформляются вручную.
		return 0
	}
	return amount
}

// floorDiv — целочисленное деление с округлением к минус-бесконечности.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func cloneForPricing(order *domain.Order) domain.Order {
	clone := *order
	clone.Items = make([]domain.LineItem, len(order.Items))
	copy(clone.Items, order.Items)
	for i := range clone.Items {
		clone.Items[i].Adjustments = append([]domain.Adjustment(nil), order.Items[i].Adjustments...)
	}
	clone.Adjustments = append([]domain.Adjustment(nil), order.Adjustments...)
	return clone
}
