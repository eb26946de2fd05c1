package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/swaplabs/sagashop/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Create(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, tenant_id, order_id, amount_minor, status, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		payment.ID, payment.TenantID, payment.OrderID, payment.AmountMinor,
		string(payment.Status), payment.Version, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

// UpdateStatus переводит платёж из PENDING в терминальный статус. Предикат
// по текущему статусу не даёт перезаписать уже решённый платёж повторным
// событием.
func (r *paymentRepository) UpdateStatus(tenantID, id string, status domain.PaymentStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1,
		    version = version + 1,
		    updated_at = $2
		WHERE id = $3
		  AND tenant_id = $4
		  AND status = $5
	`, string(status), time.Now().UTC(), id, tenantID, string(domain.PaymentStatusPending))
	if err != nil {
		return false, fmt.Errorf("update payment status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment rows affected: %w", err)
	}

	return affected > 0, nil
}

func (r *paymentRepository) GetByOrderID(tenantID, orderID string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		payment domain.Payment
		status  string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, order_id, amount_minor, status, version, created_at, updated_at
		FROM payments
		WHERE tenant_id = $1 AND order_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, tenantID, orderID).Scan(
		&payment.ID, &payment.TenantID, &payment.OrderID, &payment.AmountMinor,
		&status, &payment.Version, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}
	payment.Status = domain.PaymentStatus(status)

	return payment, nil
}

func (r *paymentRepository) List(tenantID string) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, order_id, amount_minor, status, version, created_at, updated_at
		FROM payments
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		var (
			payment domain.Payment
			status  string
		)
		if err := rows.Scan(
			&payment.ID, &payment.TenantID, &payment.OrderID, &payment.AmountMinor,
			&status, &payment.Version, &payment.CreatedAt, &payment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payment.Status = domain.PaymentStatus(status)
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) Reset(tenantID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("reset payments: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM processed_events WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("reset processed events: %w", err)
	}
	return nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
