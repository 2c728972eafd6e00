package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingservice/src/database"
	"tradingservice/src/model"
)

// WebhookLogRepository handles the append-only webhook delivery audit table.
type WebhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a new repository instance using the main read/write database.
func NewWebhookLogRepository() *WebhookLogRepository {
	logger.WithField("component", "WebhookLogRepository").
		Info("Creating new WebhookLogRepository with MainDB")

	return &WebhookLogRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *WebhookLogRepository) WithDB(db *gorm.DB) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

// Create appends one delivery attempt record.
func (r *WebhookLogRepository) Create(
	ctx context.Context,
	entry *model.WebhookLog,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":        "WebhookLogRepository",
		"op":          "Create",
		"event":       entry.Event,
		"retry_count": entry.RetryCount,
	}).Debug("Creating webhook log entry")

	err := r.db.WithContext(ctx).Create(entry).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "WebhookLogRepository",
			"op":    "Create",
			"event": entry.Event,
		}).WithError(err).Error("Failed to create webhook log entry")

		return err
	}

	return nil
}

// FindFailed lists delivery attempts that never got a 2xx response and
// still have retry budget. Used by the replay job.
func (r *WebhookLogRepository) FindFailed(
	ctx context.Context,
	maxRetries int,
	limit int,
) ([]model.WebhookLog, error) {

	logger.WithFields(map[string]interface{}{
		"repo":        "WebhookLogRepository",
		"op":          "FindFailed",
		"max_retries": maxRetries,
		"limit":       limit,
	}).Debug("Fetching failed webhook deliveries")

	var entries []model.WebhookLog

	err := r.db.WithContext(ctx).
		Where("(status_code IS NULL OR status_code >= 400) AND retry_count < ?", maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "WebhookLogRepository",
			"op":   "FindFailed",
		}).WithError(err).Error("Failed to fetch failed webhook deliveries")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "WebhookLogRepository",
		"op":          "FindFailed",
		"rows_return": len(entries),
	}).Info("Failed webhook deliveries fetched")

	return entries, nil
}
