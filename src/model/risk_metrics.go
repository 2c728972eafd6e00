package model

import "time"

// RiskMetrics is the daily risk aggregate, one row per date (YYYY-MM-DD).
// The block counter is bumped on every risk rejection; the loss and
// notional snapshots are refreshed by the reconcile job and are derived
// from fills, never written by the order pipeline itself.
type RiskMetrics struct {
	Date             string  `gorm:"primaryKey;size:10" json:"date"`
	DailyLossUSD     float64 `gorm:"column:daily_loss_usd;default:0" json:"daily_loss_usd"`
	TotalPositionUSD float64 `gorm:"column:total_position_usd;default:0" json:"total_position_usd"`
	RiskBlocksCount  int64   `gorm:"default:0" json:"risk_blocks_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RiskMetrics) TableName() string {
	return "risk_metrics"
}

// MetricsDate formats t in the local day used for daily aggregates.
func MetricsDate(t time.Time) string {
	return t.Format("2006-01-02")
}
