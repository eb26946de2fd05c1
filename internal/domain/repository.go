package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов.
// Все операции tenant-scoped: параллельные демо-сессии не видят друг друга.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderAlreadyExists при повторном ID.
	Create(order Order) error
	// Get возвращает заказ tenant-а или ErrOrderNotFound, если его нет.
	Get(tenantID, id string) (Order, error)
	// List возвращает все заказы tenant-а, новые первыми.
	List(tenantID string) ([]Order, error)
	// UpdateStatus — условное обновление статуса. Возвращает false, если заказ
	// не найден или уже в терминальном статусе: дублированные и поздние события
	// это штатная ситуация, не ошибка.
	UpdateStatus(tenantID, id string, status OrderStatus, errorMessage string) (bool, error)
	// CancelExpired атомарно переводит в CANCELLED все PENDING-заказы старше
	// olderThan и возвращает затронутые заказы тем же запросом, чтобы чтение
	// не гонялось с обновлением.
	CancelExpired(olderThan time.Time, reason string) ([]Order, error)
	// Reset удаляет заказы tenant-а (для тестов).
	Reset(tenantID string) error
}

// InventoryRepository — движок резервирования стока с оптимистической
// конкурентностью. Условие и мутация выполняются одним оператором, поэтому
// конкурентные резервы одного товара не могут увидеть устаревшую доступность.
type InventoryRepository interface {
	// CheckAvailability — read-only проверка requested <= available для
	// диагностики. Реальное резервирование перепроверяет атомарно.
	CheckAvailability(tenantID string, items []OrderItem) (ReservationResult, error)
	// ReserveItems резервирует все позиции в одной транзакции. Либо все
	// позиции резервируются, либо ничего не меняется.
	ReserveItems(tenantID, orderID string, items []OrderItem) (ReservationResult, error)
	// ReleaseItems снимает резерв (компенсация). false — резерва нет,
	// безопасный no-op, за счёт которого компенсация идемпотентна.
	ReleaseItems(tenantID, orderID string) (bool, error)
	// ConfirmReservation финализирует продажу: уменьшает stock_level и reserved
	// на купленное количество. false — резерва нет, no-op.
	ConfirmReservation(tenantID, orderID string) (bool, error)
	// ListProducts возвращает каталог tenant-а.
	ListProducts(tenantID string) ([]Product, error)
	// SeedProducts сидирует/обновляет каталог tenant-а (upsert по id).
	SeedProducts(tenantID string, products []Product) error
	// Stats возвращает агрегаты по стоку и резервам tenant-а.
	Stats(tenantID string) (InventoryStats, error)
	// Reset удаляет товары, резервы и idempotency-ключи tenant-а (для тестов).
	Reset(tenantID string) error
}

// PaymentRepository хранит попытки оплаты.
type PaymentRepository interface {
	// Create сохраняет платёж в статусе PENDING.
	Create(payment Payment) error
	// UpdateStatus переводит платёж в терминальный статус. false — платёж не найден.
	UpdateStatus(tenantID, id string, status PaymentStatus) (bool, error)
	// GetByOrderID возвращает последний платёж по заказу или ErrPaymentNotFound.
	GetByOrderID(tenantID, orderID string) (Payment, error)
	// List возвращает платежи tenant-а, новые первыми.
	List(tenantID string) ([]Payment, error)
	// Reset удаляет платежи tenant-а (для тестов).
	Reset(tenantID string) error
}

// IdempotencyRepository — реестр уже обработанных событий. Уникальный
// constraint на (event_key, tenant_id) выступает распределённым "клеймом"
// против повторных side effect-ов при redelivery.
type IdempotencyRepository interface {
	// HasProcessed сообщает, было ли событие с ключом уже обработано.
	HasProcessed(tenantID, key string) (bool, error)
	// MarkProcessed помечает ключ обработанным; конфликт по ключу — no-op.
	MarkProcessed(tenantID, key string) error
	// Remove удаляет ключ (replay компенсаций в тестах).
	Remove(tenantID, key string) error
	// Reset удаляет все ключи tenant-а.
	Reset(tenantID string) error
}
