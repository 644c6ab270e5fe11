package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// PromotionCatalog — in-memory реализация PromotionService. Акции
// регистрируются при старте; условия применимости считаются выполненными
// для всех заказов, пока акция не истекла.
type PromotionCatalog struct {
	mu     sync.RWMutex
	byCode map[string]domain.Promotion
}

// NewPromotionCatalog создаёт пустой справочник акций.
func NewPromotionCatalog() *PromotionCatalog {
	return &PromotionCatalog{byCode: make(map[string]domain.Promotion)}
}

// Put регистрирует акцию.
func (c *PromotionCatalog) Put(promo domain.Promotion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCode[promo.Code] = promo
}

// Eligible возвращает все неистёкшие акции.
func (c *PromotionCatalog) Eligible(_ domain.Order) ([]domain.Promotion, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now().UTC()
	promos := make([]domain.Promotion, 0, len(c.byCode))
	for _, promo := range c.byCode {
		if !promo.Expired(now) {
			promos = append(promos, promo)
		}
	}
	return promos, nil
}

// Lookup ищет акцию по коду купона.
func (c *PromotionCatalog) Lookup(code string) (domain.Promotion, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	promo, ok := c.byCode[code]
	if !ok {
		return domain.Promotion{}, domain.ErrPromotionNotFound
	}
	return promo, nil
}

var _ domain.PromotionService = (*PromotionCatalog)(nil)
