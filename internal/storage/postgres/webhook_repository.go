package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type webhookRepository struct {
	db *sql.DB
}

// NewWebhookRepository создаёт PostgreSQL-защиту от повторной доставки
// webhook-событий.
func NewWebhookRepository(store *Store) domain.WebhookRepository {
	return &webhookRepository{db: store.DB()}
}

// Processed сообщает, регистрировалось ли событие ранее.
func (r *webhookRepository) Processed(provider, eventID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var seen bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM processed_webhooks
			WHERE provider = $1 AND event_id = $2
		)
	`, provider, eventID).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check webhook processed: %w", err)
	}
	return seen, nil
}

// MarkProcessed регистрирует событие через INSERT ... ON CONFLICT:
// конкурентные доставки того же события сериализуются базой, и только
// одна из них получает true.
func (r *webhookRepository) MarkProcessed(provider, eventID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_webhooks (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT (provider, event_id) DO NOTHING
	`, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("mark webhook processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

var _ domain.WebhookRepository = (*webhookRepository)(nil)
