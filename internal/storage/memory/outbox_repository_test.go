package memory

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestOutboxRepository_Lifecycle(t *testing.T) {
	t.Parallel()

	repo := NewOutboxRepository()

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order", AggregateID: "order-1",
		EventType: "order.status_changed", Payload: []byte(`{}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == "" {
		t.Fatal("expected generated message id")
	}
	second, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order", AggregateID: "order-1",
		EventType: "payment.authorized", Payload: []byte(`{}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	// Порядок добавления сохраняется.
	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatal("pending messages out of enqueue order")
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected backlog 2, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected oldest pending timestamp")
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkFailed(second.ID); err != nil {
		t.Fatal(err)
	}

	pending, _ = repo.PullPending(10)
	if len(pending) != 0 {
		t.Fatalf("expected empty backlog, got %d", len(pending))
	}

	if err := repo.MarkSent("missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish for unknown id, got %v", err)
	}
}

func TestOutboxRepository_PullPendingLimit(t *testing.T) {
	t.Parallel()

	repo := NewOutboxRepository()
	for i := 0; i < 5; i++ {
		if _, err := repo.Enqueue(domain.OutboxMessage{EventType: "order.status_changed"}); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := repo.PullPending(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(pending))
	}
}

func TestWebhookRepository_Replay(t *testing.T) {
	t.Parallel()

	repo := NewWebhookRepository()

	seen, err := repo.Processed("mockpay", "evt-1")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("event must not be processed before first delivery")
	}

	first, err := repo.MarkProcessed("mockpay", "evt-1")
	if err != nil {
		t.Fatal(err)
	}
	if !first {
		t.Fatal("first delivery must be processed")
	}

	seen, err = repo.Processed("mockpay", "evt-1")
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatal("event must be processed after marking")
	}

	again, err := repo.MarkProcessed("mockpay", "evt-1")
	if err != nil {
		t.Fatal(err)
	}
	if again {
		t.Fatal("replay must be rejected")
	}

	// То же событие от другого провайдера — не повтор.
	other, err := repo.MarkProcessed("otherpay", "evt-1")
	if err != nil {
		t.Fatal(err)
	}
	if !other {
		t.Fatal("same event id from another provider is not a replay")
	}
}
