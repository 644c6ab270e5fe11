package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type paymentMethodRepository struct {
	db *sql.DB
}

// NewPaymentMethodRepository создаёт PostgreSQL-хранилище способов оплаты.
func NewPaymentMethodRepository(store *Store) *paymentMethodRepository {
	return &paymentMethodRepository{db: store.DB()}
}

func (r *paymentMethodRepository) ByCode(code string) (domain.PaymentMethod, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var method domain.PaymentMethod
	err := r.db.QueryRowContext(ctx, `
		SELECT code, provider, auto_capture, deferred_capture, sealed_credentials
		FROM payment_methods
		WHERE code = $1
	`, code).Scan(&method.Code, &method.Provider, &method.AutoCapture,
		&method.DeferredCapture, &method.SealedCredentials)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PaymentMethod{}, domain.ErrMethodNotFound
		}
		return domain.PaymentMethod{}, fmt.Errorf("select payment method: %w", err)
	}
	return method, nil
}

// Put сохраняет или обновляет способ оплаты (инициализация).
func (r *paymentMethodRepository) Put(method domain.PaymentMethod) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_methods (code, provider, auto_capture, deferred_capture, sealed_credentials)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (code) DO UPDATE SET
			provider = EXCLUDED.provider,
			auto_capture = EXCLUDED.auto_capture,
			deferred_capture = EXCLUDED.deferred_capture,
			sealed_credentials = EXCLUDED.sealed_credentials
	`, method.Code, method.Provider, method.AutoCapture, method.DeferredCapture,
		method.SealedCredentials); err != nil {
		return fmt.Errorf("upsert payment method: %w", err)
	}
	return nil
}

var _ domain.PaymentMethodRepository = (*paymentMethodRepository)(nil)
