package kafka

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// OutboxEventPublisher публикует outbox-сообщения в Kafka, раскладывая
// их по топикам в зависимости от типа события.
type OutboxEventPublisher struct {
	producer *Producer
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxEventPublisher{producer: producer}
}

func (p *OutboxEventPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox envelope: %w", err)
	}

	return p.producer.PublishRaw(topicFor(event.EventType), key, value)
}

// topicFor выбирает топик по префиксу типа события.
func topicFor(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "payment."):
		return TopicPaymentEvents
	case strings.HasPrefix(eventType, "shipment."), strings.HasPrefix(eventType, "stock."):
		return TopicFulfillmentEvents
	default:
		return TopicOrderEvents
	}
}

var _ domain.OutboxPublisher = (*OutboxEventPublisher)(nil)
