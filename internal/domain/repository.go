package domain

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByCustomer возвращает заказы клиента с опциональным ограничением на количество.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// ByPaymentRef находит заказ по референсу платёжного провайдера.
	// Используется при обработке webhook-событий.
	ByPaymentRef(gatewayRef string) (Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking:
	// при несовпадении Version возвращает ErrVersionConflict.
	Save(order Order) error
}

// StockRepository описывает хранилище учётных записей стока и журнала движений.
type StockRepository interface {
	// Get возвращает запись по идентификатору или ErrStockItemNotFound.
	Get(id string) (StockItem, error)
	// ByVariant возвращает записи варианта по всем складам.
	ByVariant(variantID string) ([]StockItem, error)
	// ByVariantAndLocation возвращает запись пары (вариант, склад).
	ByVariantAndLocation(variantID, locationID string) (StockItem, error)
	// Create сохраняет новую учётную запись.
	Create(item StockItem) error
	// SaveWithMovement атомарно обновляет запись (с проверкой Version)
	// и дописывает движение в журнал. Журнал append-only.
	SaveWithMovement(item StockItem, movement StockMovement) error
	// Movements возвращает журнал движений записи в порядке добавления.
	Movements(stockItemID string) ([]StockMovement, error)
	// Locations возвращает активные склады.
	Locations() ([]StockLocation, error)
}

// WebhookRepository фиксирует обработанные события шлюзов для защиты от replay.
type WebhookRepository interface {
	// Processed сообщает, обрабатывалось ли событие (provider, eventID).
	Processed(provider, eventID string) (bool, error)
	// MarkProcessed атомарно регистрирует событие; возвращает false, если
	// событие с таким (provider, eventID) уже обрабатывалось. Вызывается
	// только после успешного сохранения заказа: иначе повторная доставка
	// после сбоя была бы отброшена как replay.
	MarkProcessed(provider, eventID string) (bool, error)
}

// PaymentMethodRepository хранит конфигурации способов оплаты.
type PaymentMethodRepository interface {
	// ByCode возвращает способ оплаты или ErrMethodNotFound.
	ByCode(code string) (PaymentMethod, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}
