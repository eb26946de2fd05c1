package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора tenant-а (сессии).
	ErrTenantRequired = errors.New("tenant_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего идентификатора товара в позиции.
	ErrItemProductRequired = errors.New("item product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка неподдерживаемого behaviour-флага.
	ErrBehaviourInvalid = errors.New("behaviour must be success, failure or random")
	// Ошибка отсутствующего идентификатора заказа в платежах/резервах.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка отрицательной суммы платежа.
	ErrPaymentAmountNegative = errors.New("payment amount must be non-negative")
	// ErrStockInvariantViolated сигнализирует о нарушении 0 <= reserved <= stock_level.
	ErrStockInvariantViolated = errors.New("reserved must stay within [0, stock_level]")
	// ErrOrderNotFound возвращается, если заказ не найден для tenant-а.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists — заказ с таким ID уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrPaymentNotFound возвращается, если платёж не найден для tenant-а.
	ErrPaymentNotFound = errors.New("payment not found")
)

// IsNotFound проверяет, относится ли ошибка к классу "запись отсутствует".
// Поздние и дублированные события делают такие ситуации штатными.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrPaymentNotFound)
}
