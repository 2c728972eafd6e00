package model

import (
	"time"

	"github.com/google/uuid"
)

// WebhookLog records a single webhook delivery attempt for auditing and
// replay. Append-only, never read by the order pipeline.
type WebhookLog struct {
	ID         string  `gorm:"primaryKey;size:60" json:"id"`
	Event      string  `gorm:"size:60;index;not null" json:"event"`
	URL        string  `gorm:"size:512;not null" json:"url"`
	Payload    string  `gorm:"type:text;not null" json:"payload"`
	Signature  string  `gorm:"size:128;not null" json:"signature"`
	StatusCode *int    `json:"status_code,omitempty"`
	Response   *string `gorm:"type:text" json:"response,omitempty"`
	RetryCount int     `gorm:"default:0" json:"retry_count"`

	CreatedAt time.Time `json:"created_at"`
}

func (WebhookLog) TableName() string {
	return "webhook_logs"
}

func NewWebhookLogID() string {
	return "wh_" + uuid.NewString()[:8]
}
