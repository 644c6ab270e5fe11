package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// stockRepositoryInMemory — in-memory реализация StockRepository.
// Журнал движений append-only: записи никогда не изменяются и не удаляются.
type stockRepositoryInMemory struct {
	mu        sync.RWMutex
	items     map[string]domain.StockItem
	movements map[string][]domain.StockMovement
	locations map[string]domain.StockLocation
}

// NewStockRepository возвращает in-memory реализацию складского хранилища.
func NewStockRepository() *stockRepositoryInMemory {
	return &stockRepositoryInMemory{
		items:     make(map[string]domain.StockItem),
		movements: make(map[string][]domain.StockMovement),
		locations: make(map[string]domain.StockLocation),
	}
}

// Get возвращает учётную запись или ErrStockItemNotFound.
func (r *stockRepositoryInMemory) Get(id string) (domain.StockItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return domain.StockItem{}, domain.ErrStockItemNotFound
	}
	return item, nil
}

// ByVariant возвращает записи варианта по всем складам в стабильном порядке.
func (r *stockRepositoryInMemory) ByVariant(variantID string) ([]domain.StockItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.StockItem, 0, 4)
	for _, item := range r.items {
		if item.VariantID == variantID {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LocationID < result[j].LocationID
	})
	return result, nil
}

// ByVariantAndLocation возвращает запись пары (вариант, склад).
func (r *stockRepositoryInMemory) ByVariantAndLocation(variantID, locationID string) (domain.StockItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.items {
		if item.VariantID == variantID && item.LocationID == locationID {
			return item, nil
		}
	}
	return domain.StockItem{}, domain.ErrStockItemNotFound
}

// Create сохраняет новую учётную запись.
func (r *stockRepositoryInMemory) Create(item domain.StockItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.items[item.ID] = item
	return nil
}

// SaveWithMovement атомарно перезаписывает запись (с проверкой версии)
// и дописывает движение в журнал.
func (r *stockRepositoryInMemory) SaveWithMovement(item domain.StockItem, movement domain.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[item.ID]
	if !ok {
		return domain.ErrStockItemNotFound
	}
	if current.Version != item.Version {
		return domain.ErrVersionConflict
	}
	item.Version++
	r.items[item.ID] = item
	r.movements[item.ID] = append(r.movements[item.ID], movement)
	return nil
}

// Movements возвращает копию журнала движений записи.
func (r *stockRepositoryInMemory) Movements(stockItemID string) ([]domain.StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.StockMovement(nil), r.movements[stockItemID]...), nil
}

// Locations возвращает активные склады, упорядоченные по рангу близости.
func (r *stockRepositoryInMemory) Locations() ([]domain.StockLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.StockLocation, 0, len(r.locations))
	for _, loc := range r.locations {
		if loc.Active {
			result = append(result, loc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ProximityRank < result[j].ProximityRank
	})
	return result, nil
}

// AddLocation регистрирует склад (используется при инициализации и в тестах).
func (r *stockRepositoryInMemory) AddLocation(loc domain.StockLocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[loc.ID] = loc
}

var _ domain.StockRepository = (*stockRepositoryInMemory)(nil)
