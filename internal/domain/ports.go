package domain

import "time"

// Variant — снимок товара из каталога на момент добавления в заказ.
type Variant struct {
	ID         string
	SKU        string
	Name       string
	PriceMinor int64
	Currency   string
}

// CatalogService — read-only доступ к каталогу. Используется единожды
// при добавлении позиции: дальше заказ живёт со снимком цены.
type CatalogService interface {
	Variant(variantID string) (Variant, error)
}

// PromotionService — коллаборатор правил промоакций. Для ядра это чистая
// функция над снимком заказа: никакого состояния между вызовами.
type PromotionService interface {
	// Eligible возвращает акции, применимые к заказу прямо сейчас.
	Eligible(order Order) ([]Promotion, error)
	// Lookup находит акцию по коду купона; ErrPromotionNotFound, если кода нет.
	Lookup(code string) (Promotion, error)
}

// GatewayCredentials — расшифрованные учётные данные провайдера.
// Живут только на время одного вызова шлюза.
type GatewayCredentials struct {
	MerchantID string
	SecretKey  string
	// WebhookSecret подписывает входящие события провайдера.
	WebhookSecret string
}

// GatewayRequest — параметры одного вызова платёжного шлюза.
type GatewayRequest struct {
	Credentials GatewayCredentials
	AmountMinor int64
	Currency    string
	// IdempotencyKey делает повтор после таймаута безопасным.
	IdempotencyKey string
	// GatewayRef — референс провайдера для capture/void/refund.
	GatewayRef string
}

// GatewayResult — нормализованный ответ провайдера.
type GatewayResult struct {
	GatewayRef string
	Status     PaymentStatus
}

// PaymentGateway — контракт платёжного провайдера. Одна реализация на
// провайдера; выбор делает фабрика по коду способа оплаты.
type PaymentGateway interface {
	Authorize(req GatewayRequest) (GatewayResult, error)
	Capture(req GatewayRequest) (GatewayResult, error)
	Void(req GatewayRequest) (GatewayResult, error)
	Refund(req GatewayRequest) (GatewayResult, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxMessage хранит данные публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
