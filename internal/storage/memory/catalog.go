package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Catalog — in-memory реализация CatalogService. Наполняется при старте
// приложения; реальный каталог живёт во внешнем сервисе.
type Catalog struct {
	mu       sync.RWMutex
	variants map[string]domain.Variant
}

// NewCatalog создаёт пустой каталог.
func NewCatalog() *Catalog {
	return &Catalog{variants: make(map[string]domain.Variant)}
}

// Put добавляет или заменяет вариант товара.
func (c *Catalog) Put(variant domain.Variant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variants[variant.ID] = variant
}

// Variant возвращает снимок варианта по идентификатору.
func (c *Catalog) Variant(variantID string) (domain.Variant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	variant, ok := c.variants[variantID]
	if !ok {
		return domain.Variant{}, domain.ErrVariantNotFound
	}
	return variant, nil
}

var _ domain.CatalogService = (*Catalog)(nil)
