package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradingservice/src/database"
	"tradingservice/src/model"
)

// PositionRepository owns the per-symbol aggregates and the
// weighted-average-price math applied on every fill.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main read/write database.
func NewPositionRepository() *PositionRepository {
	logger.WithField("component", "PositionRepository").
		Info("Creating new PositionRepository with MainDB")

	return &PositionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// ApplyFill applies one fill to the symbol's position inside a single
// transaction. The row is locked for the read-modify-write so concurrent
// fills on the same symbol cannot compute the average from stale data.
//
// Buy: new_avg = (qty*avg + fill_qty*fill_price) / (qty + fill_qty).
// Sell: qty -= fill_qty; when |qty| drops under the epsilon the position
// snaps flat (qty=0, avg=0) so no dust or stale cost basis survives.
// Notional is recomputed as |qty * avg| on every pass.
func (r *PositionRepository) ApplyFill(
	ctx context.Context,
	symbol string,
	side string,
	fillQty float64,
	fillPrice float64,
) (*model.Position, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "PositionRepository",
		"op":     "ApplyFill",
		"symbol": symbol,
		"side":   side,
		"qty":    fillQty,
		"price":  fillPrice,
	}).Debug("Applying fill to position")

	var position model.Position

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		// SQLite (used in tests) serializes writers on its own and has no
		// row locks; everything else gets SELECT ... FOR UPDATE.
		if tx.Dialector.Name() != "sqlite" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		err := query.Where("symbol = ?", symbol).First(&position).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("lock position row: %w", err)
			}
			position = model.Position{Symbol: symbol}
			if err := tx.Create(&position).Error; err != nil {
				return fmt.Errorf("create position row: %w", err)
			}
		}

		switch side {
		case model.OrderSideBuy:
			newQty := position.Qty + fillQty
			if newQty != 0 {
				position.AvgPrice = ((position.Qty * position.AvgPrice) + (fillQty * fillPrice)) / newQty
				position.Qty = newQty
			}
		case model.OrderSideSell:
			position.Qty -= fillQty
			if math.Abs(position.Qty) < model.PositionEpsilon {
				position.Qty = 0
				position.AvgPrice = 0
			}
		default:
			return fmt.Errorf("unknown order side %q", side)
		}

		position.Notional = math.Abs(position.Qty * position.AvgPrice)

		return tx.Model(&model.Position{}).
			Where("symbol = ?", symbol).
			Updates(map[string]interface{}{
				"qty":       position.Qty,
				"avg_price": position.AvgPrice,
				"notional":  position.Notional,
			}).Error
	})

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "ApplyFill",
			"symbol": symbol,
		}).WithError(err).Error("Failed to apply fill to position")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "PositionRepository",
		"op":        "ApplyFill",
		"symbol":    symbol,
		"qty":       position.Qty,
		"avg_price": position.AvgPrice,
		"notional":  position.Notional,
	}).Info("Position updated")

	return &position, nil
}

// ListOpen returns positions with a non-zero quantity.
func (r *PositionRepository) ListOpen(
	ctx context.Context,
) ([]model.Position, error) {

	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("qty <> 0").
		Order("symbol ASC").
		Find(&positions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "ListOpen",
		}).WithError(err).Error("Failed to list open positions")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "ListOpen",
		"rows_return": len(positions),
	}).Debug("Open positions fetched")

	return positions, nil
}

// TotalOpenNotional sums |qty * avg_price| across all open positions.
// Read by the risk engine before every execution.
func (r *PositionRepository) TotalOpenNotional(
	ctx context.Context,
) (float64, error) {

	var total float64

	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Select("COALESCE(SUM(ABS(qty * avg_price)), 0)").
		Where("qty <> 0").
		Scan(&total).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "TotalOpenNotional",
		}).WithError(err).Error("Failed to sum open notional")

		return 0, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "PositionRepository",
		"op":    "TotalOpenNotional",
		"total": total,
	}).Debug("Open notional computed")

	return total, nil
}
