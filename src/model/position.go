package model

import "time"

// PositionEpsilon is the zero threshold for position quantities. A closing
// trade that leaves |qty| below it snaps the position flat so a stale
// average price never leaks into the next leg.
const PositionEpsilon = 1e-5

// Position is the per-symbol aggregate, one row per symbol.
// Quantity is signed, positive means long.
type Position struct {
	Symbol   string  `gorm:"primaryKey;size:30" json:"symbol"`
	Qty      float64 `gorm:"default:0" json:"qty"`
	AvgPrice float64 `gorm:"default:0" json:"avg_price"`
	Notional float64 `gorm:"default:0" json:"notional"`
	Pnl      float64 `gorm:"default:0" json:"pnl"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}
