package payments

import (
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Registry сопоставляет код провайдера с реализацией шлюза. Наполняется
// один раз при старте приложения, дальше только читается.
type Registry struct {
	gateways map[string]domain.PaymentGateway
}

// NewRegistry создаёт пустой реестр провайдеров.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]domain.PaymentGateway)}
}

// Register добавляет реализацию шлюза для провайдера.
func (r *Registry) Register(provider string, gateway domain.PaymentGateway) {
	r.gateways[provider] = gateway
}

// ForProvider возвращает шлюз провайдера или ErrProviderNotFound.
func (r *Registry) ForProvider(provider string) (domain.PaymentGateway, error) {
	gateway, ok := r.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", provider, domain.ErrProviderNotFound)
	}
	return gateway, nil
}
