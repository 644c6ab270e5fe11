package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type timelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository создаёт PostgreSQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

func (r *timelineRepository) Append(event domain.TimelineEvent) error {
	if event.OrderID == "" {
		return domain.ErrOrderIDRequired
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO order_timeline (order_id, event_type, actor, reason, occurred_at)
		VALUES ($1,$2,$3,$4,$5)
	`, event.OrderID, event.Type, event.Actor, event.Reason, event.Occurred); err != nil {
		return fmt.Errorf("insert timeline event: %w", err)
	}
	return nil
}

func (r *timelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, event_type, actor, reason, occurred_at
		FROM order_timeline
		WHERE order_id = $1
		ORDER BY occurred_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select timeline: %w", err)
	}
	defer rows.Close()

	events := make([]domain.TimelineEvent, 0)
	for rows.Next() {
		var event domain.TimelineEvent
		if err := rows.Scan(&event.OrderID, &event.Type, &event.Actor,
			&event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
