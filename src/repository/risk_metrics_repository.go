package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradingservice/src/database"
	"tradingservice/src/model"
)

// RiskMetricsRepository maintains the daily risk aggregate rows.
type RiskMetricsRepository struct {
	db *gorm.DB
}

// NewRiskMetricsRepository creates a new repository instance using the main read/write database.
func NewRiskMetricsRepository() *RiskMetricsRepository {
	logger.WithField("component", "RiskMetricsRepository").
		Info("Creating new RiskMetricsRepository with MainDB")

	return &RiskMetricsRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *RiskMetricsRepository) WithDB(db *gorm.DB) *RiskMetricsRepository {
	return &RiskMetricsRepository{db: db}
}

// IncrementBlocks bumps the risk-block counter for the given date,
// creating the daily row on first use.
func (r *RiskMetricsRepository) IncrementBlocks(
	ctx context.Context,
	date string,
) error {

	logger.WithFields(map[string]interface{}{
		"repo": "RiskMetricsRepository",
		"op":   "IncrementBlocks",
		"date": date,
	}).Debug("Incrementing risk block counter")

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"risk_blocks_count": gorm.Expr("risk_metrics.risk_blocks_count + 1"),
			}),
		}).
		Create(&model.RiskMetrics{Date: date, RiskBlocksCount: 1}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "RiskMetricsRepository",
			"op":   "IncrementBlocks",
			"date": date,
		}).WithError(err).Error("Failed to increment risk block counter")

		return err
	}

	return nil
}

// UpsertSnapshot refreshes the derived loss/notional snapshot for a date.
// Called by the reconcile job, never by the order pipeline.
func (r *RiskMetricsRepository) UpsertSnapshot(
	ctx context.Context,
	date string,
	dailyLossUSD float64,
	totalPositionUSD float64,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":               "RiskMetricsRepository",
		"op":                 "UpsertSnapshot",
		"date":               date,
		"daily_loss_usd":     dailyLossUSD,
		"total_position_usd": totalPositionUSD,
	}).Debug("Upserting risk metrics snapshot")

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"daily_loss_usd":     dailyLossUSD,
				"total_position_usd": totalPositionUSD,
			}),
		}).
		Create(&model.RiskMetrics{
			Date:             date,
			DailyLossUSD:     dailyLossUSD,
			TotalPositionUSD: totalPositionUSD,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "RiskMetricsRepository",
			"op":   "UpsertSnapshot",
			"date": date,
		}).WithError(err).Error("Failed to upsert risk metrics snapshot")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "RiskMetricsRepository",
		"op":   "UpsertSnapshot",
		"date": date,
	}).Info("Risk metrics snapshot updated")

	return nil
}
