package pricing

import "github.com/vladislavdragonenkov/checkout/internal/domain"

// MockPromotionService — конфигурируемая заглушка PromotionService для тестов.
type MockPromotionService struct {
	EligiblePromos []domain.Promotion
	EligibleErr    error
	// Catalog сопоставляет код купона акции для Lookup.
	Catalog map[string]domain.Promotion

	EligibleCalls int
	LookupCalls   int
}

// NewMockPromotionService возвращает mock без акций по умолчанию.
func NewMockPromotionService() *MockPromotionService {
	return &MockPromotionService{Catalog: make(map[string]domain.Promotion)}
}

// Eligible возвращает заранее настроенный набор акций.
func (m *MockPromotionService) Eligible(order domain.Order) ([]domain.Promotion, error) {
	m.EligibleCalls++
	return m.EligiblePromos, m.EligibleErr
}

// Lookup ищет акцию в настроенном каталоге.
func (m *MockPromotionService) Lookup(code string) (domain.Promotion, error) {
	m.LookupCalls++
	promo, ok := m.Catalog[code]
	if !ok {
		return domain.Promotion{}, domain.ErrPromotionNotFound
	}
	return promo, nil
}

var _ domain.PromotionService = (*MockPromotionService)(nil)
