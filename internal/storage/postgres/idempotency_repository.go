package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/swaplabs/sagashop/internal/domain"
)

type idempotencyRepository struct {
	db *sql.DB
}

// NewIdempotencyRepository создаёт PostgreSQL-реализацию IdempotencyRepository.
func NewIdempotencyRepository(store *Store) domain.IdempotencyRepository {
	return &idempotencyRepository{db: store.DB()}
}

func (r *idempotencyRepository) HasProcessed(tenantID, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("idempotency key is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM processed_events WHERE event_key = $1 AND tenant_id = $2
		)
	`, key, tenantID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}

	return exists, nil
}

// MarkProcessed вставляет ключ; конфликт по (event_key, tenant_id) — no-op.
// Уникальный constraint и есть распределённый "claim" против дубликатов.
func (r *idempotencyRepository) MarkProcessed(tenantID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_key, tenant_id)
		VALUES ($1, $2)
		ON CONFLICT (event_key, tenant_id) DO NOTHING
	`, key, tenantID); err != nil {
		return fmt.Errorf("mark processed event: %w", err)
	}

	return nil
}

func (r *idempotencyRepository) Remove(tenantID, key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM processed_events WHERE event_key = $1 AND tenant_id = $2
	`, key, tenantID); err != nil {
		return fmt.Errorf("remove processed event: %w", err)
	}

	return nil
}

func (r *idempotencyRepository) Reset(tenantID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM processed_events WHERE tenant_id = $1
	`, tenantID); err != nil {
		return fmt.Errorf("reset processed events: %w", err)
	}

	return nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
