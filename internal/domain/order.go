package domain

import "time"

// OrderStatus описывает жизненный цикл заказа в саге.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, сага ещё выполняется.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusCompleted — оплата прошла, резерв подтверждён. Терминальный статус.
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusCancelled — сага завершилась компенсацией: нет стока, отказ
	// оплаты или таймаут. Терминальный статус.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal сообщает, является ли статус конечным: из него нет переходов.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Behaviour управляет симулируемым исходом шага саги в демо/тестовых сценариях.
type Behaviour string

const (
	// BehaviourSuccess — шаг всегда завершается успешно.
	BehaviourSuccess Behaviour = "success"
	// BehaviourFailure — шаг всегда завершается бизнес-отказом.
	BehaviourFailure Behaviour = "failure"
	// BehaviourRandom — шаг падает с вероятностью 50%.
	BehaviourRandom Behaviour = "random"
)

// Valid проверяет, что behaviour относится к поддерживаемым значениям.
// Пустое значение трактуется как success.
func (b Behaviour) Valid() bool {
	switch b {
	case "", BehaviourSuccess, BehaviourFailure, BehaviourRandom:
		return true
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ProductID — идентификатор товара на складе.
	ProductID string `json:"productId"`
	// Quantity — количество единиц товара.
	Quantity int32 `json:"quantity"`
}

// Order агрегирует состояние заказа в рамках одной саги.
// Мутируется только через OrderRepository.UpdateStatus; инвентарь и платежи
// заказ напрямую не трогают.
type Order struct {
	ID       string      `json:"id"`
	SagaID   string      `json:"sagaId"`
	TenantID string      `json:"tenantId"`
	Items    []OrderItem `json:"items"`
	Status   OrderStatus `json:"status"`
	// ErrorMessage заполняется при CANCELLED и объясняет причину отмены.
	ErrorMessage       string    `json:"errorMessage,omitempty"`
	PaymentBehaviour   Behaviour `json:"paymentBehaviour,omitempty"`
	InventoryBehaviour Behaviour `json:"inventoryBehaviour,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.TenantID == "" {
		errs = append(errs, ErrTenantRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrItemProductRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
	}
	if !o.PaymentBehaviour.Valid() || !o.InventoryBehaviour.Valid() {
		errs = append(errs, ErrBehaviourInvalid)
	}

	return errs
}
