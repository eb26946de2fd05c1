package domain

import "time"

// Product описывает складскую позицию одного tenant-а.
// Инвариант: 0 <= Reserved <= StockLevel в любой момент, в том числе под
// конкурентной нагрузкой. Available — производная величина, не хранится.
type Product struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	Name       string    `json:"name"`
	StockLevel int32     `json:"stockLevel"`
	Reserved   int32     `json:"reserved"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Available возвращает количество, доступное к резервированию.
func (p *Product) Available() int32 {
	return p.StockLevel - p.Reserved
}

// ValidateInvariants проверяет складские инварианты позиции.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if p.TenantID == "" {
		errs = append(errs, ErrTenantRequired)
	}
	if p.Reserved < 0 || p.Reserved > p.StockLevel {
		errs = append(errs, ErrStockInvariantViolated)
	}

	return errs
}

// InventoryStats агрегирует состояние склада одного tenant-а.
type InventoryStats struct {
	TotalProducts         int   `json:"totalProducts"`
	TotalStock            int64 `json:"totalStock"`
	TotalReserved         int64 `json:"totalReserved"`
	TotalAvailable        int64 `json:"totalAvailable"`
	PendingReservations   int   `json:"pendingReservations"`
	ConfirmedReservations int   `json:"confirmedReservations"`
}

// SeedCatalog возвращает демо-каталог, который сидируется для каждого tenant-а.
func SeedCatalog(tenantID string) []Product {
	now := time.Now().UTC()
	seed := func(id, name string, stock int32) Product {
		return Product{
			ID:         id,
			TenantID:   tenantID,
			Name:       name,
			StockLevel: stock,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	return []Product{
		seed("laptop", "Gaming Laptop", 5),
		seed("mouse", "Wireless Mouse", 67),
		seed("keyboard", "Mechanical Keyboard", 21),
		seed("monitor", "4K Monitor", 15),
	}
}
