package webhookreplay

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingservice/src/repository"
	"tradingservice/src/webhook"
)

// WebhookReplay re-delivers webhook events whose last recorded attempt
// failed. Each replayed delivery is logged as a fresh attempt with a bumped
// retry count, so the per-event retry budget still holds across runs.
type WebhookReplay struct {
	Log    *logger.Entry
	DB     *gorm.DB
	Config *Config
}

func (j *WebhookReplay) Start() error {
	if j.Config == nil {
		j.Config = GetConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.Config.Timeout)
	defer cancel()

	logs := (&repository.WebhookLogRepository{}).WithDB(j.DB)
	webhookConfig := webhook.GetConfig()
	notifier := webhook.NewNotifier(webhookConfig, logs)

	failed, err := logs.FindFailed(ctx, webhookConfig.MaxRetries, j.Config.BatchSize)
	if err != nil {
		return err
	}

	j.Log.WithField("count", len(failed)).Info("Replaying failed webhook deliveries")

	for _, entry := range failed {
		statusCode, err := notifier.Deliver(ctx, entry.Event, []byte(entry.Payload), entry.RetryCount+1)
		if err != nil || statusCode >= 400 {
			j.Log.WithError(err).WithFields(map[string]interface{}{
				"event":       entry.Event,
				"status_code": statusCode,
				"retry_count": entry.RetryCount + 1,
			}).Warn("Replay delivery failed")
			continue
		}

		j.Log.WithFields(map[string]interface{}{
			"event":       entry.Event,
			"status_code": statusCode,
		}).Info("Replay delivery succeeded")
	}

	return nil
}
