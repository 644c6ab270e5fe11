package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// timelineRepositoryInMemory хранит события жизненного цикла заказов в памяти.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

// Append дописывает событие в историю заказа.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.OrderID == "" {
		return domain.ErrOrderIDRequired
	}
	r.events[event.OrderID] = append(r.events[event.OrderID], event)
	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := append([]domain.TimelineEvent(nil), r.events[orderID]...)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Occurred.Before(result[j].Occurred)
	})
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
