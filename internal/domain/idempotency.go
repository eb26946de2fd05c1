package domain

import "fmt"

// Детерминированные idempotency-ключи саги. Ключ кодирует логическое действие
// и заказ, поэтому повторная доставка того же события вычисляет тот же ключ.

// ReserveKey — ключ резервирования стока по заказу.
func ReserveKey(orderID string) string {
	return "inventory:reserve:" + orderID
}

// ReleaseKey — ключ снятия резерва (компенсации) по заказу.
func ReleaseKey(orderID string) string {
	return "inventory:release:" + orderID
}

// ConfirmKey — ключ подтверждения резерва по заказу.
func ConfirmKey(orderID string) string {
	return "inventory:confirm:" + orderID
}

// PaymentKey — ключ обработки платежа по заказу.
func PaymentKey(orderID string) string {
	return "payment:" + orderID
}

// OrderUpdateKey — ключ обновления статуса заказа по типу события.
func OrderUpdateKey(orderID, eventType string) string {
	return fmt.Sprintf("order-update:%s:%s", orderID, eventType)
}
