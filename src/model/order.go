package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderSideBuy  = "buy"
	OrderSideSell = "sell"

	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"

	OrderStatusAccepted  = "accepted"
	OrderStatusPending   = "pending"
	OrderStatusFilled    = "filled"
	OrderStatusRejected  = "rejected"
	OrderStatusCancelled = "cancelled"
)

// Order represents an intake order that the service sends to the broker.
// The idempotency key is unique at the database level: two submissions with
// the same key can never both create a row.
type Order struct {
	ID             string   `gorm:"primaryKey;size:60" json:"order_id"`
	Symbol         string   `gorm:"size:30;index;not null" json:"symbol"`
	Side           string   `gorm:"size:10;not null" json:"side"`
	Type           string   `gorm:"size:10;not null" json:"type"`
	Qty            float64  `gorm:"not null" json:"qty"`
	LimitPrice     *float64 `json:"limit_price,omitempty"`
	FilledQty      float64  `gorm:"default:0" json:"filled_qty"`
	AvgPrice       *float64 `json:"avg_price,omitempty"`
	Status         string   `gorm:"size:20;not null;default:accepted" json:"status"`
	ClientID       string   `gorm:"size:60;not null" json:"client_id"`
	IdempotencyKey string   `gorm:"size:120;uniqueIndex;not null" json:"idempotency_key"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for orders.
func (Order) TableName() string {
	return "orders"
}

// NewOrderID generates a short prefixed identifier, e.g. ord_1a2b3c4d.
func NewOrderID() string {
	return "ord_" + uuid.NewString()[:8]
}

// IsTerminal reports whether the order can no longer change status.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusRejected, OrderStatusCancelled:
		return true
	}
	return false
}
