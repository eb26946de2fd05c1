package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/swaplabs/sagashop/internal/domain"
)

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository создаёт PostgreSQL-реализацию InventoryRepository.
func NewInventoryRepository(store *Store) domain.InventoryRepository {
	return &inventoryRepository{db: store.DB()}
}

// CheckAvailability — диагностическая read-only проверка. Настоящее
// резервирование не гейтится этим результатом: между check и act доступность
// может измениться, поэтому ReserveItems перепроверяет атомарно.
func (r *inventoryRepository) CheckAvailability(tenantID string, items []domain.OrderItem) (domain.ReservationResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	failed := make([]domain.FailedItem, 0)
	for _, item := range items {
		var available int32
		err := r.db.QueryRowContext(ctx, `
			SELECT stock_level - reserved
			FROM products
			WHERE id = $1 AND tenant_id = $2
		`, item.ProductID, tenantID).Scan(&available)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				failed = append(failed, domain.FailedItem{ProductID: item.ProductID, Requested: item.Quantity})
				continue
			}
			return domain.ReservationResult{}, fmt.Errorf("check availability for %s: %w", item.ProductID, err)
		}
		if available < item.Quantity {
			failed = append(failed, domain.FailedItem{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: available,
			})
		}
	}

	return domain.ReservationResult{Success: len(failed) == 0, FailedItems: failed}, nil
}

// ReserveItems резервирует позиции в одной транзакции. Условие
// (stock_level - reserved) >= qty и инкремент reserved — один UPDATE:
// row lock сериализует конкурентные резервы одного товара, и оба не могут
// увидеть устаревшую доступность. Read-committed этого достаточно.
func (r *inventoryRepository) ReserveItems(tenantID, orderID string, items []domain.OrderItem) (domain.ReservationResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReservationResult{}, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	failed := make([]domain.FailedItem, 0)
	for _, item := range items {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `
			UPDATE products
			SET reserved = reserved + $1,
			    version = version + 1,
			    updated_at = NOW()
			WHERE id = $2
			  AND tenant_id = $3
			  AND (stock_level - reserved) >= $1
		`, item.Quantity, item.ProductID, tenantID)
		if err != nil {
			return domain.ReservationResult{}, fmt.Errorf("reserve product %s: %w", item.ProductID, err)
		}

		var affected int64
		affected, err = res.RowsAffected()
		if err != nil {
			return domain.ReservationResult{}, fmt.Errorf("reserve rows affected: %w", err)
		}
		if affected == 0 {
			// Либо товара нет, либо не хватило стока: фиксируем доступность
			// на момент отказа для человекочитаемой причины.
			var available int32
			scanErr := tx.QueryRowContext(ctx, `
				SELECT stock_level - reserved
				FROM products
				WHERE id = $1 AND tenant_id = $2
			`, item.ProductID, tenantID).Scan(&available)
			if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
				err = fmt.Errorf("read availability at failure for %s: %w", item.ProductID, scanErr)
				return domain.ReservationResult{}, err
			}
			failed = append(failed, domain.FailedItem{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: available,
			})
		}
	}

	if len(failed) > 0 {
		// Мульти-позиционный резерв атомарен: любой отказ откатывает всё.
		_ = tx.Rollback()
		err = nil
		return domain.ReservationResult{Success: false, FailedItems: failed}, nil
	}

	var itemsRaw []byte
	itemsRaw, err = json.Marshal(items)
	if err != nil {
		return domain.ReservationResult{}, fmt.Errorf("marshal reservation items: %w", err)
	}

	// Идемпотентный insert: повторная доставка ORDER_CREATED не создаёт
	// второй резерв.
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (order_id, tenant_id, items, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (order_id, tenant_id) DO NOTHING
	`, orderID, tenantID, itemsRaw, string(domain.ReservationStatusPending)); err != nil {
		return domain.ReservationResult{}, fmt.Errorf("insert reservation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.ReservationResult{}, fmt.Errorf("commit reserve tx: %w", err)
	}

	return domain.ReservationResult{Success: true}, nil
}

// ReleaseItems — компенсирующая транзакция. Отсутствующий резерв — безопасный
// no-op: именно это делает компенсацию идемпотентной.
func (r *inventoryRepository) ReleaseItems(tenantID, orderID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin release tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	items, found, err := reservationItemsTx(ctx, tx, tenantID, orderID, domain.ReservationStatusPending)
	if err != nil {
		return false, err
	}
	if !found {
		_ = tx.Rollback()
		return false, nil
	}

	for _, item := range items {
		if _, err = tx.ExecContext(ctx, `
			UPDATE products
			SET reserved = GREATEST(0, reserved - $1),
			    version = version + 1,
			    updated_at = NOW()
			WHERE id = $2 AND tenant_id = $3
		`, item.Quantity, item.ProductID, tenantID); err != nil {
			return false, fmt.Errorf("release product %s: %w", item.ProductID, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM reservations WHERE order_id = $1 AND tenant_id = $2
	`, orderID, tenantID); err != nil {
		return false, fmt.Errorf("delete reservation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit release tx: %w", err)
	}

	return true, nil
}

// ConfirmReservation финализирует продажу: stock_level и reserved уменьшаются
// на купленное количество, available не меняется. Резерв остаётся в таблице
// со статусом confirmed.
func (r *inventoryRepository) ConfirmReservation(tenantID, orderID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin confirm tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	items, found, err := reservationItemsTx(ctx, tx, tenantID, orderID, domain.ReservationStatusPending)
	if err != nil {
		return false, err
	}
	if !found {
		_ = tx.Rollback()
		return false, nil
	}

	for _, item := range items {
		if _, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock_level = stock_level - $1,
			    reserved = reserved - $1,
			    version = version + 1,
			    updated_at = NOW()
			WHERE id = $2 AND tenant_id = $3
		`, item.Quantity, item.ProductID, tenantID); err != nil {
			return false, fmt.Errorf("confirm product %s: %w", item.ProductID, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE reservations
		SET status = $1, confirmed_at = NOW()
		WHERE order_id = $2 AND tenant_id = $3
	`, string(domain.ReservationStatusConfirmed), orderID, tenantID); err != nil {
		return false, fmt.Errorf("mark reservation confirmed: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit confirm tx: %w", err)
	}

	return true, nil
}

func (r *inventoryRepository) ListProducts(tenantID string) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, stock_level, reserved, version, created_at, updated_at
		FROM products
		WHERE tenant_id = $1
		ORDER BY name ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.TenantID, &p.Name, &p.StockLevel, &p.Reserved,
			&p.Version, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func (r *inventoryRepository) SeedProducts(tenantID string, products []domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	for _, p := range products {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO products (id, tenant_id, name, stock_level, reserved, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 0, 0, NOW(), NOW())
			ON CONFLICT (id, tenant_id) DO UPDATE SET
				stock_level = EXCLUDED.stock_level,
				name = EXCLUDED.name,
				updated_at = NOW()
		`, p.ID, tenantID, p.Name, p.StockLevel); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}

	return nil
}

func (r *inventoryRepository) Stats(tenantID string) (domain.InventoryStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var stats domain.InventoryStats
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(stock_level), 0),
		       COALESCE(SUM(reserved), 0),
		       COALESCE(SUM(stock_level - reserved), 0)
		FROM products
		WHERE tenant_id = $1
	`, tenantID).Scan(
		&stats.TotalProducts, &stats.TotalStock, &stats.TotalReserved, &stats.TotalAvailable,
	); err != nil {
		return domain.InventoryStats{}, fmt.Errorf("query product stats: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'confirmed')
		FROM reservations
		WHERE tenant_id = $1
	`, tenantID).Scan(&stats.PendingReservations, &stats.ConfirmedReservations); err != nil {
		return domain.InventoryStats{}, fmt.Errorf("query reservation stats: %w", err)
	}

	return stats, nil
}

func (r *inventoryRepository) Reset(tenantID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	for _, stmt := range []string{
		`DELETE FROM reservations WHERE tenant_id = $1`,
		`DELETE FROM processed_events WHERE tenant_id = $1`,
		`DELETE FROM products WHERE tenant_id = $1`,
	} {
		if _, err := r.db.ExecContext(ctx, stmt, tenantID); err != nil {
			return fmt.Errorf("reset inventory: %w", err)
		}
	}

	return nil
}

// reservationItemsTx читает позиции pending-резерва внутри транзакции.
// FOR UPDATE блокирует строку резерва: release и confirm по одному заказу
// не могут выполниться одновременно.
func reservationItemsTx(ctx context.Context, tx *sql.Tx, tenantID, orderID string, status domain.ReservationStatus) ([]domain.OrderItem, bool, error) {
	var itemsRaw []byte
	err := tx.QueryRowContext(ctx, `
		SELECT items
		FROM reservations
		WHERE order_id = $1 AND tenant_id = $2 AND status = $3
		FOR UPDATE
	`, orderID, tenantID, string(status)).Scan(&itemsRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("select reservation: %w", err)
	}

	var items []domain.OrderItem
	if err := json.Unmarshal(itemsRaw, &items); err != nil {
		return nil, false, fmt.Errorf("unmarshal reservation items: %w", err)
	}

	return items, true, nil
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)
