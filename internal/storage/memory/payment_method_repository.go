package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// paymentMethodRepositoryInMemory хранит конфигурации способов оплаты.
type paymentMethodRepositoryInMemory struct {
	mu      sync.RWMutex
	methods map[string]domain.PaymentMethod
}

// NewPaymentMethodRepository создаёт in-memory хранилище способов оплаты.
func NewPaymentMethodRepository() *paymentMethodRepositoryInMemory {
	return &paymentMethodRepositoryInMemory{methods: make(map[string]domain.PaymentMethod)}
}

// ByCode возвращает способ оплаты или ErrMethodNotFound.
func (r *paymentMethodRepositoryInMemory) ByCode(code string) (domain.PaymentMethod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	method, ok := r.methods[code]
	if !ok {
		return domain.PaymentMethod{}, domain.ErrMethodNotFound
	}
	return method, nil
}

// Put регистрирует способ оплаты (инициализация и тесты).
func (r *paymentMethodRepositoryInMemory) Put(method domain.PaymentMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[method.Code] = method
	return nil
}

var _ domain.PaymentMethodRepository = (*paymentMethodRepositoryInMemory)(nil)
