package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingservice/src/database"
	"tradingservice/src/model"
)

// FillRepository handles the append-only fills audit table.
type FillRepository struct {
	db *gorm.DB
}

// NewFillRepository creates a new repository instance using the main read/write database.
func NewFillRepository() *FillRepository {
	logger.WithField("component", "FillRepository").
		Info("Creating new FillRepository with MainDB")

	return &FillRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *FillRepository) WithDB(db *gorm.DB) *FillRepository {
	return &FillRepository{db: db}
}

// Create appends a fill. Fills are never updated or deleted.
func (r *FillRepository) Create(
	ctx context.Context,
	fill *model.Fill,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "FillRepository",
		"op":       "Create",
		"fill_id":  fill.ID,
		"order_id": fill.OrderID,
		"symbol":   fill.Symbol,
		"qty":      fill.Qty,
		"price":    fill.Price,
	}).Debug("Creating fill")

	err := r.db.WithContext(ctx).Create(fill).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "FillRepository",
			"op":       "Create",
			"order_id": fill.OrderID,
		}).WithError(err).Error("Failed to create fill")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "FillRepository",
		"op":      "Create",
		"fill_id": fill.ID,
	}).Info("Fill created")

	return nil
}

// FindByOrderID lists all fills recorded for an order.
func (r *FillRepository) FindByOrderID(
	ctx context.Context,
	orderID string,
) ([]model.Fill, error) {

	var fills []model.Fill

	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("timestamp ASC").
		Find(&fills).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "FillRepository",
			"op":       "FindByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch fills")

		return nil, err
	}

	return fills, nil
}

// DailyRealizedLoss computes the realized loss over fills since the given
// day start: buy cost minus sell proceeds, floored at zero.
func (r *FillRepository) DailyRealizedLoss(
	ctx context.Context,
	dayStart time.Time,
) (float64, error) {

	logger.WithFields(map[string]interface{}{
		"repo":      "FillRepository",
		"op":        "DailyRealizedLoss",
		"day_start": dayStart,
	}).Debug("Computing daily realized loss")

	var buys, sells float64

	err := r.db.WithContext(ctx).
		Model(&model.Fill{}).
		Select("COALESCE(SUM(qty * price), 0)").
		Where("timestamp >= ? AND side = ?", dayStart, model.OrderSideBuy).
		Scan(&buys).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FillRepository",
			"op":   "DailyRealizedLoss",
		}).WithError(err).Error("Failed to sum buy fills")

		return 0, err
	}

	err = r.db.WithContext(ctx).
		Model(&model.Fill{}).
		Select("COALESCE(SUM(qty * price), 0)").
		Where("timestamp >= ? AND side = ?", dayStart, model.OrderSideSell).
		Scan(&sells).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FillRepository",
			"op":   "DailyRealizedLoss",
		}).WithError(err).Error("Failed to sum sell fills")

		return 0, err
	}

	loss := buys - sells
	if loss < 0 {
		loss = 0
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "FillRepository",
		"op":    "DailyRealizedLoss",
		"buys":  buys,
		"sells": sells,
		"loss":  loss,
	}).Debug("Daily realized loss computed")

	return loss, nil
}
