package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is a storefront order awaiting an on-chain payment.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	CustomerID     string          `json:"customer_id"`
	Quantity       int64           `json:"quantity"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	RecipientChat  int64           `json:"recipient_chat"`
	CreatedAt      time.Time       `json:"created_at"`
	Status         OrderStatus     `json:"status"`
}

// NewOrder creates a pending order.
func NewOrder(customerID string, quantity int64, expectedAmount decimal.Decimal, recipientChat int64) *Order {
	return &Order{
		ID:             uuid.New(),
		CustomerID:     customerID,
		Quantity:       quantity,
		ExpectedAmount: expectedAmount,
		RecipientChat:  recipientChat,
		CreatedAt:      time.Now().UTC(),
		Status:         OrderStatusPending,
	}
}

// IsExpiredAt reports whether the order has outlived the given timeout.
func (o *Order) IsExpiredAt(now time.Time, timeout time.Duration) bool {
	return o.Status == OrderStatusPending && now.Sub(o.CreatedAt) > timeout
}

// Clone returns a copy so callers outside the store cannot mutate shared state.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}
