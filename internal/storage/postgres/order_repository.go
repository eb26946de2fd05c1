package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/swaplabs/sagashop/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, tenant_id, saga_id, items, status, error_message,
			payment_behaviour, inventory_behaviour, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		order.ID, order.TenantID, order.SagaID, items, string(order.Status),
		nullIfEmpty(order.ErrorMessage), string(order.PaymentBehaviour),
		string(order.InventoryBehaviour), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderAlreadyExists
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(tenantID, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, saga_id, items, status, error_message,
		       payment_behaviour, inventory_behaviour, created_at, updated_at
		FROM orders
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	return order, nil
}

func (r *orderRepository) List(tenantID string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, saga_id, items, status, error_message,
		       payment_behaviour, inventory_behaviour, created_at, updated_at
		FROM orders
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// UpdateStatus — условный переход статуса. Предикат status='PENDING'
// гарантирует, что терминальный заказ не перезаписывается поздним событием.
func (r *orderRepository) UpdateStatus(tenantID, id string, status domain.OrderStatus, errorMessage string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    error_message = $2,
		    updated_at = $3
		WHERE id = $4
		  AND tenant_id = $5
		  AND status = $6
	`,
		string(status),
		nullIfEmpty(errorMessage),
		time.Now().UTC(),
		id,
		tenantID,
		string(domain.OrderStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("order rows affected: %w", err)
	}

	return affected > 0, nil
}

// CancelExpired отменяет зависшие PENDING-заказы одним оператором: предикат и
// RETURNING исключают гонку между выбором и обновлением.
func (r *orderRepository) CancelExpired(olderThan time.Time, reason string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		UPDATE orders
		SET status = $1,
		    error_message = $2,
		    updated_at = NOW()
		WHERE status = $3
		  AND created_at < $4
		RETURNING id, tenant_id, saga_id, items, status, error_message,
		          payment_behaviour, inventory_behaviour, created_at, updated_at
	`,
		string(domain.OrderStatusCancelled),
		reason,
		string(domain.OrderStatusPending),
		olderThan,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel expired orders: %w", err)
	}
	defer rows.Close()

	cancelled := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cancelled order: %w", err)
		}
		cancelled = append(cancelled, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cancelled orders: %w", err)
	}

	return cancelled, nil
}

func (r *orderRepository) Reset(tenantID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("reset orders: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM processed_events WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("reset processed events: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order              domain.Order
		itemsRaw           []byte
		status             string
		errorMessage       sql.NullString
		paymentBehaviour   string
		inventoryBehaviour string
	)

	if err := row.Scan(
		&order.ID, &order.TenantID, &order.SagaID, &itemsRaw, &status, &errorMessage,
		&paymentBehaviour, &inventoryBehaviour, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	if err := json.Unmarshal(itemsRaw, &order.Items); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal order items: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.ErrorMessage = errorMessage.String
	order.PaymentBehaviour = domain.Behaviour(paymentBehaviour)
	order.InventoryBehaviour = domain.Behaviour(inventoryBehaviour)

	return order, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
