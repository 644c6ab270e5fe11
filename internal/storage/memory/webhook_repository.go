package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// webhookRepositoryInMemory фиксирует обработанные webhook-события в памяти.
type webhookRepositoryInMemory struct {
	mu        sync.Mutex
	processed map[string]struct{}
}

// NewWebhookRepository создаёт in-memory защиту от повторной доставки событий.
func NewWebhookRepository() domain.WebhookRepository {
	return &webhookRepositoryInMemory{processed: make(map[string]struct{})}
}

// Processed сообщает, регистрировалось ли событие ранее.
func (r *webhookRepositoryInMemory) Processed(provider, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, seen := r.processed[provider+"/"+eventID]
	return seen, nil
}

// MarkProcessed регистрирует событие; повтор того же (provider, eventID)
// возвращает false, и переход не применяется второй раз.
func (r *webhookRepositoryInMemory) MarkProcessed(provider, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := provider + "/" + eventID
	if _, seen := r.processed[key]; seen {
		return false, nil
	}
	r.processed[key] = struct{}{}
	return true, nil
}

var _ domain.WebhookRepository = (*webhookRepositoryInMemory)(nil)
