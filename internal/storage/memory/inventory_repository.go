package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/swaplabs/sagashop/internal/domain"
)

// inventoryRepositoryInMemory повторяет семантику PostgreSQL-движка:
// условие и мутация резерва выполняются под одной блокировкой, резерв по
// нескольким позициям атомарен.
type inventoryRepositoryInMemory struct {
	mu           sync.Mutex
	products     map[string]domain.Product     // ключ: tenantID + "/" + productID
	reservations map[string]domain.Reservation // ключ: tenantID + "/" + orderID
}

// NewInventoryRepository возвращает in-memory реализацию InventoryRepository.
func NewInventoryRepository() domain.InventoryRepository {
	return &inventoryRepositoryInMemory{
		products:     make(map[string]domain.Product),
		reservations: make(map[string]domain.Reservation),
	}
}

func invKey(tenantID, id string) string {
	return tenantID + "/" + id
}

func (r *inventoryRepositoryInMemory) CheckAvailability(tenantID string, items []domain.OrderItem) (domain.ReservationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	failed := make([]domain.FailedItem, 0)
	for _, item := range items {
		product, ok := r.products[invKey(tenantID, item.ProductID)]
		if !ok {
			failed = append(failed, domain.FailedItem{ProductID: item.ProductID, Requested: item.Quantity})
			continue
		}
		if product.Available() < item.Quantity {
			failed = append(failed, domain.FailedItem{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: product.Available(),
			})
		}
	}

	return domain.ReservationResult{Success: len(failed) == 0, FailedItems: failed}, nil
}

func (r *inventoryRepositoryInMemory) ReserveItems(tenantID, orderID string, items []domain.OrderItem) (domain.ReservationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Двухфазная проверка под одной блокировкой: сначала валидируем все
	// позиции, потом мутируем — любой отказ не меняет ничего.
	failed := make([]domain.FailedItem, 0)
	for _, item := range items {
		product, ok := r.products[invKey(tenantID, item.ProductID)]
		if !ok {
			failed = append(failed, domain.FailedItem{ProductID: item.ProductID, Requested: item.Quantity})
			continue
		}
		if product.Available() < item.Quantity {
			failed = append(failed, domain.FailedItem{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: product.Available(),
			})
		}
	}
	if len(failed) > 0 {
		return domain.ReservationResult{Success: false, FailedItems: failed}, nil
	}

	if _, exists := r.reservations[invKey(tenantID, orderID)]; exists {
		// Повторная доставка: резерв уже есть, второй раз не резервируем.
		return domain.ReservationResult{Success: true}, nil
	}

	for _, item := range items {
		key := invKey(tenantID, item.ProductID)
		product := r.products[key]
		product.Reserved += item.Quantity
		product.Version++
		product.UpdatedAt = time.Now().UTC()
		r.products[key] = product
	}

	reserved := make([]domain.OrderItem, len(items))
	copy(reserved, items)
	r.reservations[invKey(tenantID, orderID)] = domain.Reservation{
		OrderID:   orderID,
		TenantID:  tenantID,
		Items:     reserved,
		Status:    domain.ReservationStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	return domain.ReservationResult{Success: true}, nil
}

func (r *inventoryRepositoryInMemory) ReleaseItems(tenantID, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := invKey(tenantID, orderID)
	reservation, ok := r.reservations[key]
	if !ok || reservation.Status != domain.ReservationStatusPending {
		return false, nil
	}

	for _, item := range reservation.Items {
		pkey := invKey(tenantID, item.ProductID)
		product, ok := r.products[pkey]
		if !ok {
			continue
		}
		product.Reserved -= item.Quantity
		if product.Reserved < 0 {
			product.Reserved = 0
		}
		product.Version++
		product.UpdatedAt = time.Now().UTC()
		r.products[pkey] = product
	}

	delete(r.reservations, key)
	return true, nil
}

func (r *inventoryRepositoryInMemory) ConfirmReservation(tenantID, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := invKey(tenantID, orderID)
	reservation, ok := r.reservations[key]
	if !ok || reservation.Status != domain.ReservationStatusPending {
		return false, nil
	}

	for _, item := range reservation.Items {
		pkey := invKey(tenantID, item.ProductID)
		product, ok := r.products[pkey]
		if !ok {
			continue
		}
		product.StockLevel -= item.Quantity
		product.Reserved -= item.Quantity
		product.Version++
		product.UpdatedAt = time.Now().UTC()
		r.products[pkey] = product
	}

	now := time.Now().UTC()
	reservation.Status = domain.ReservationStatusConfirmed
	reservation.ConfirmedAt = &now
	r.reservations[key] = reservation
	return true, nil
}

func (r *inventoryRepositoryInMemory) ListProducts(tenantID string) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.Product, 0)
	for _, product := range r.products {
		if product.TenantID == tenantID {
			result = append(result, product)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

func (r *inventoryRepositoryInMemory) SeedProducts(tenantID string, products []domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, p := range products {
		key := invKey(tenantID, p.ID)
		if existing, ok := r.products[key]; ok {
			existing.Name = p.Name
			existing.StockLevel = p.StockLevel
			existing.UpdatedAt = now
			r.products[key] = existing
			continue
		}
		p.TenantID = tenantID
		p.Reserved = 0
		p.Version = 0
		p.CreatedAt = now
		p.UpdatedAt = now
		r.products[key] = p
	}

	return nil
}

func (r *inventoryRepositoryInMemory) Stats(tenantID string) (domain.InventoryStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats domain.InventoryStats
	for _, product := range r.products {
		if product.TenantID != tenantID {
			continue
		}
		stats.TotalProducts++
		stats.TotalStock += int64(product.StockLevel)
		stats.TotalReserved += int64(product.Reserved)
		stats.TotalAvailable += int64(product.Available())
	}
	for _, reservation := range r.reservations {
		if reservation.TenantID != tenantID {
			continue
		}
		switch reservation.Status {
		case domain.ReservationStatusPending:
			stats.PendingReservations++
		case domain.ReservationStatusConfirmed:
			stats.ConfirmedReservations++
		}
	}

	return stats, nil
}

func (r *inventoryRepositoryInMemory) Reset(tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, product := range r.products {
		if product.TenantID == tenantID {
			delete(r.products, key)
		}
	}
	for key, reservation := range r.reservations {
		if reservation.TenantID == tenantID {
			delete(r.reservations, key)
		}
	}
	return nil
}

var _ domain.InventoryRepository = (*inventoryRepositoryInMemory)(nil)
