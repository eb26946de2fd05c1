package domain

import "time"

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж создан в момент резервирования стока,
	// исход ещё не известен.
	PaymentStatusPending PaymentStatus = "PENDING"
	// PaymentStatusSuccess — симулятор подтвердил списание.
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	// PaymentStatusFailed — симулятор отклонил платёж.
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// UnitPriceMinor — фиксированная цена единицы товара в минимальных денежных
// единицах. Сумма платежа детерминированно считается из количеств.
const UnitPriceMinor int64 = 1000

// Payment описывает попытку оплаты заказа. Создаётся в PENDING и ровно один
// раз переводится в терминальный статус.
type Payment struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenantId"`
	OrderID     string        `json:"orderId"`
	AmountMinor int64         `json:"amount"`
	Status      PaymentStatus `json:"status"`
	Version     int64         `json:"version"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	switch {
	case p.OrderID == "":
		errs = append(errs, ErrOrderIDRequired)
	case p.TenantID == "":
		errs = append(errs, ErrTenantRequired)
	case p.AmountMinor < 0:
		errs = append(errs, ErrPaymentAmountNegative)
	}

	return errs
}

// OrderAmountMinor считает сумму заказа: qty * фиксированная цена.
func OrderAmountMinor(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += int64(item.Quantity) * UnitPriceMinor
	}
	return total
}
