package domain

import "time"

// EventType — тип доменного события, публикуемого после коммита.
type EventType string

const (
	EventOrderCompleted     EventType = "order.completed"
	EventOrderCanceled      EventType = "order.canceled"
	EventOrderReturned      EventType = "order.returned"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventPaymentAuthorized  EventType = "payment.authorized"
	EventPaymentCaptured    EventType = "payment.captured"
	EventPaymentVoided      EventType = "payment.voided"
	EventPaymentRefunded    EventType = "payment.refunded"
	EventPaymentFailed      EventType = "payment.failed"
	EventShipmentPlanned    EventType = "shipment.planned"
	EventShipmentShipped    EventType = "shipment.shipped"
	EventStockDepleted      EventType = "stock.depleted"
	EventPromotionApplied   EventType = "promotion.applied"
)

// Event — доменное событие, накопленное в ходе транзакции.
// Список ожидающих событий сбрасывается подписчикам только после успешного
// коммита: сама транзакция не блокируется доставкой.
type Event struct {
	Type          EventType
	AggregateType string
	AggregateID   string
	// Actor — личность инициатора, переданная в операцию явно.
	Actor      string
	Payload    map[string]any
	OccurredAt time.Time
}

// Record добавляет событие в список ожидающих.
func (o *Order) Record(event Event) {
	if event.AggregateType == "" {
		event.AggregateType = "order"
	}
	if event.AggregateID == "" {
		event.AggregateID = o.ID
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	o.pending = append(o.pending, event)
}

// DrainEvents возвращает накопленные события и очищает список.
// Вызывается после успешного сохранения заказа.
func (o *Order) DrainEvents() []Event {
	events := o.pending
	o.pending = nil
	return events
}

// PendingEvents возвращает накопленные события без очистки.
func (o *Order) PendingEvents() []Event {
	return o.pending
}
