package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/swaplabs/sagashop/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order // ключ: tenantID + "/" + orderID
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

func orderKey(tenantID, id string) string {
	return tenantID + "/" + id
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := orderKey(order.TenantID, order.ID)
	if _, exists := r.items[key]; exists {
		return domain.ErrOrderAlreadyExists
	}
	r.items[key] = order
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(tenantID, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[orderKey(tenantID, id)]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// List возвращает заказы tenant-а, новые первыми.
func (r *orderRepositoryInMemory) List(tenantID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.items {
		if order.TenantID == tenantID {
			result = append(result, order)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// UpdateStatus — условный переход: только из PENDING, false при отсутствии
// заказа или уже терминальном статусе.
func (r *orderRepositoryInMemory) UpdateStatus(tenantID, id string, status domain.OrderStatus, errorMessage string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := orderKey(tenantID, id)
	order, ok := r.items[key]
	if !ok || order.Status != domain.OrderStatusPending {
		return false, nil
	}

	order.Status = status
	order.ErrorMessage = errorMessage
	order.UpdatedAt = time.Now().UTC()
	r.items[key] = order
	return true, nil
}

// CancelExpired отменяет PENDING-заказы старше olderThan под одной блокировкой,
// что воспроизводит атомарность UPDATE ... RETURNING.
func (r *orderRepositoryInMemory) CancelExpired(olderThan time.Time, reason string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelled := make([]domain.Order, 0)
	for key, order := range r.items {
		if order.Status != domain.OrderStatusPending || !order.CreatedAt.Before(olderThan) {
			continue
		}
		order.Status = domain.OrderStatusCancelled
		order.ErrorMessage = reason
		order.UpdatedAt = time.Now().UTC()
		r.items[key] = order
		cancelled = append(cancelled, order)
	}

	return cancelled, nil
}

// Reset удаляет заказы tenant-а.
func (r *orderRepositoryInMemory) Reset(tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, order := range r.items {
		if order.TenantID == tenantID {
			delete(r.items, key)
		}
	}
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
