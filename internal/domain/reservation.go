package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReservationStatus отражает состояние резерва товаров под заказ.
type ReservationStatus string

const (
	// ReservationStatusPending — сток зарезервирован, ожидаем исход оплаты.
	ReservationStatusPending ReservationStatus = "pending"
	// ReservationStatusConfirmed — оплата прошла, продажа финализирована.
	// Терминальный статус: резерв из него не возвращается.
	ReservationStatusConfirmed ReservationStatus = "confirmed"
)

// Reservation фиксирует, какие количества были зарезервированы под заказ.
// Это единственная запись, по которой компенсация или подтверждение узнаёт,
// что именно откатывать или финализировать. Снятие резерва удаляет строку,
// подтверждение переводит её в confirmed.
type Reservation struct {
	OrderID     string            `json:"orderId"`
	TenantID    string            `json:"tenantId"`
	Items       []OrderItem       `json:"items"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	ConfirmedAt *time.Time        `json:"confirmedAt,omitempty"`
}

// FailedItem описывает позицию, которую не удалось зарезервировать.
type FailedItem struct {
	ProductID string `json:"productId"`
	Requested int32  `json:"requested"`
	// Available — доступное количество на момент отказа.
	Available int32 `json:"available"`
}

// ReservationResult — итог попытки резервирования. Резерв по нескольким
// позициям атомарен: при любом отказе не меняется ничего.
type ReservationResult struct {
	Success     bool         `json:"success"`
	FailedItems []FailedItem `json:"failedItems,omitempty"`
}

// FailureReason собирает человекочитаемую причину отказа из списка позиций.
func (r ReservationResult) FailureReason() string {
	if r.Success || len(r.FailedItems) == 0 {
		return ""
	}

	parts := make([]string, 0, len(r.FailedItems))
	for _, item := range r.FailedItems {
		parts = append(parts, fmt.Sprintf("%s (requested: %d, available: %d)",
			item.ProductID, item.Requested, item.Available))
	}
	return "Insufficient stock: " + strings.Join(parts, ", ")
}
