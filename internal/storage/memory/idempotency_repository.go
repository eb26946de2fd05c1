package memory

import (
	"sync"

	"github.com/swaplabs/sagashop/internal/domain"
)

type idempotencyRepositoryInMemory struct {
	mu        sync.RWMutex
	processed map[string]struct{} // ключ: tenantID + "/" + eventKey
}

// NewIdempotencyRepository возвращает in-memory реестр обработанных событий.
func NewIdempotencyRepository() domain.IdempotencyRepository {
	return &idempotencyRepositoryInMemory{processed: make(map[string]struct{})}
}

func (r *idempotencyRepositoryInMemory) HasProcessed(tenantID, key string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.processed[invKey(tenantID, key)]
	return ok, nil
}

func (r *idempotencyRepositoryInMemory) MarkProcessed(tenantID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.processed[invKey(tenantID, key)] = struct{}{}
	return nil
}

func (r *idempotencyRepositoryInMemory) Remove(tenantID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.processed, invKey(tenantID, key))
	return nil
}

func (r *idempotencyRepositoryInMemory) Reset(tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := tenantID + "/"
	for key := range r.processed {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(r.processed, key)
		}
	}
	return nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepositoryInMemory)(nil)
