package model

import (
	"time"

	"github.com/google/uuid"
)

// Fill is the append-only audit record of a completed execution.
// Fills are never mutated or deleted.
type Fill struct {
	ID        string    `gorm:"primaryKey;size:60" json:"id"`
	OrderID   string    `gorm:"size:60;index;not null" json:"order_id"`
	Symbol    string    `gorm:"size:30;not null" json:"symbol"`
	Side      string    `gorm:"size:10;not null" json:"side"`
	Qty       float64   `gorm:"not null" json:"qty"`
	Price     float64   `gorm:"not null" json:"price"`
	ClientID  string    `gorm:"size:60;not null" json:"client_id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

func (Fill) TableName() string {
	return "fills"
}

func NewFillID() string {
	return "fill_" + uuid.NewString()[:8]
}
