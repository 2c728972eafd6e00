package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingservice/src/database"
	"tradingservice/src/model"
)

// OrderRepository handles read/write operations for orders.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new repository instance using the main read/write database.
func NewOrderRepository() *OrderRepository {
	logger.WithField("component", "OrderRepository").
		Info("Creating new OrderRepository with MainDB")

	return &OrderRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	logger.WithField("component", "OrderRepository").
		Debug("Creating OrderRepository with custom DB instance")

	return &OrderRepository{db: db}
}

// Create inserts a new order into the database.
// The caller must be prepared for gorm.ErrDuplicatedKey: the idempotency
// key carries a unique index and concurrent submissions with the same key
// race between lookup and insert. The loser resolves the conflict by
// re-reading the winner, not by failing the request.
func (r *OrderRepository) Create(
	ctx context.Context,
	order *model.Order,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":            "OrderRepository",
		"op":              "Create",
		"order_id":        order.ID,
		"symbol":          order.Symbol,
		"side":            order.Side,
		"qty":             order.Qty,
		"idempotency_key": order.IdempotencyKey,
	}).Debug("Creating new order")

	err := r.db.WithContext(ctx).Create(order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.WithFields(map[string]interface{}{
				"repo":            "OrderRepository",
				"op":              "Create",
				"idempotency_key": order.IdempotencyKey,
			}).Info("Duplicate idempotency key detected on insert")

			return err
		}

		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create order")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "Create",
		"order_id": order.ID,
	}).Info("Order created")

	return nil
}

// FindByID fetches a single order by its identifier.
// Returns (nil, nil) when no order exists.
func (r *OrderRepository) FindByID(
	ctx context.Context,
	id string,
) (*model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "FindByID",
		"order_id": id,
	}).Debug("Fetching order by ID")

	var order model.Order

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":     "OrderRepository",
				"op":       "FindByID",
				"order_id": id,
			}).Info("Order not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "FindByID",
			"order_id": id,
		}).WithError(err).Error("Failed to fetch order")

		return nil, err
	}

	return &order, nil
}

// FindByIdempotencyKey fetches the order created for a given idempotency key.
// Returns (nil, nil) when the key was never used.
func (r *OrderRepository) FindByIdempotencyKey(
	ctx context.Context,
	key string,
) (*model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo":            "OrderRepository",
		"op":              "FindByIdempotencyKey",
		"idempotency_key": key,
	}).Debug("Fetching order by idempotency key")

	var order model.Order

	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":            "OrderRepository",
			"op":              "FindByIdempotencyKey",
			"idempotency_key": key,
		}).WithError(err).Error("Failed to fetch order by idempotency key")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":            "OrderRepository",
		"op":              "FindByIdempotencyKey",
		"idempotency_key": key,
		"order_id":        order.ID,
	}).Debug("Order fetched by idempotency key")

	return &order, nil
}

// UpdateStatus updates only the status of the given order ID.
func (r *OrderRepository) UpdateStatus(
	ctx context.Context,
	id string,
	status string,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "OrderRepository",
		"op":     "UpdateStatus",
		"id":     id,
		"status": status,
	}).Debug("Updating order status")

	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Update("status", status).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "OrderRepository",
			"op":     "UpdateStatus",
			"id":     id,
			"status": status,
		}).WithError(err).Error("Failed to update order status")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "OrderRepository",
		"op":     "UpdateStatus",
		"id":     id,
		"status": status,
	}).Info("Order status updated successfully")

	return nil
}

// MarkFilled promotes the order to its terminal filled state with the
// execution outcome. Filled quantity and average price come from the
// broker result, never from the request.
func (r *OrderRepository) MarkFilled(
	ctx context.Context,
	id string,
	filledQty float64,
	avgPrice float64,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":       "OrderRepository",
		"op":         "MarkFilled",
		"id":         id,
		"filled_qty": filledQty,
		"avg_price":  avgPrice,
	}).Debug("Marking order filled")

	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.OrderStatusFilled,
			"filled_qty": filledQty,
			"avg_price":  avgPrice,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "MarkFilled",
			"id":   id,
		}).WithError(err).Error("Failed to mark order filled")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "OrderRepository",
		"op":   "MarkFilled",
		"id":   id,
	}).Info("Order marked filled")

	return nil
}

// FindStuckBefore lists non-terminal orders (accepted or pending) created
// before the cutoff. Used by the reconcile job to sweep orders whose broker
// execution never reached a terminal outcome.
func (r *OrderRepository) FindStuckBefore(
	ctx context.Context,
	cutoff time.Time,
) ([]model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo":   "OrderRepository",
		"op":     "FindStuckBefore",
		"cutoff": cutoff,
	}).Debug("Fetching stuck orders")

	var orders []model.Order

	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?",
			[]string{model.OrderStatusAccepted, model.OrderStatusPending}, cutoff).
		Order("created_at ASC").
		Find(&orders).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindStuckBefore",
		}).WithError(err).Error("Failed to fetch stuck orders")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "OrderRepository",
		"op":          "FindStuckBefore",
		"rows_return": len(orders),
	}).Info("Stuck orders fetched")

	return orders, nil
}
