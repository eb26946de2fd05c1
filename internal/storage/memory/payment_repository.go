package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/swaplabs/sagashop/internal/domain"
)

type paymentRepositoryInMemory struct {
	mu       sync.RWMutex
	payments map[string]domain.Payment // ключ: tenantID + "/" + paymentID
}

// NewPaymentRepository возвращает in-memory реализацию PaymentRepository.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{payments: make(map[string]domain.Payment)}
}

func (r *paymentRepositoryInMemory) Create(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	r.payments[invKey(payment.TenantID, payment.ID)] = payment

	return nil
}

func (r *paymentRepositoryInMemory) UpdateStatus(tenantID, id string, status domain.PaymentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := invKey(tenantID, id)
	payment, ok := r.payments[key]
	if !ok || payment.Status != domain.PaymentStatusPending {
		return false, nil
	}

	payment.Status = status
	payment.Version++
	payment.UpdatedAt = time.Now().UTC()
	r.payments[key] = payment
	return true, nil
}

func (r *paymentRepositoryInMemory) GetByOrderID(tenantID, orderID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		latest domain.Payment
		found  bool
	)
	for _, payment := range r.payments {
		if payment.TenantID != tenantID || payment.OrderID != orderID {
			continue
		}
		if !found || payment.CreatedAt.After(latest.CreatedAt) {
			latest = payment
			found = true
		}
	}
	if !found {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}

	return latest, nil
}

func (r *paymentRepositoryInMemory) List(tenantID string) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Payment, 0)
	for _, payment := range r.payments {
		if payment.TenantID == tenantID {
			result = append(result, payment)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })

	return result, nil
}

func (r *paymentRepositoryInMemory) Reset(tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, payment := range r.payments {
		if payment.TenantID == tenantID {
			delete(r.payments, key)
		}
	}
	return nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
