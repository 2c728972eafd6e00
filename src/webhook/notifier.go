package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"tradingservice/src/model"
)

// logStore is the slice of the webhook-log repository the notifier needs.
type logStore interface {
	Create(ctx context.Context, entry *model.WebhookLog) error
}

type event struct {
	eventType string
	data      map[string]interface{}
}

// Notifier delivers signed event notifications over HTTP POST. Delivery is
// best-effort and fully decoupled from the order response path: events go
// through a bounded queue drained by a background worker, failures are
// logged and retried a bounded number of times, never escalated.
type Notifier struct {
	config Config
	http   *resty.Client
	logs   logStore
	queue  chan event
}

func NewNotifier(config Config, logs logStore) *Notifier {
	httpClient := resty.New().
		SetTimeout(config.Timeout)

	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}

	return &Notifier{
		config: config,
		http:   httpClient,
		logs:   logs,
		queue:  make(chan event, queueSize),
	}
}

// Start launches the delivery worker. It returns immediately; the worker
// stops when ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	go func() {
		logger.WithField("component", "WebhookNotifier").Info("Delivery worker started")
		for {
			select {
			case <-ctx.Done():
				logger.WithField("component", "WebhookNotifier").Info("Delivery worker stopped")
				return
			case ev := <-n.queue:
				n.deliver(ctx, ev)
			}
		}
	}()
}

// Enqueue hands an event to the delivery worker without blocking the
// caller. When the queue is full the event is dropped with a warning: the
// trade is already committed and notification is best-effort.
func (n *Notifier) Enqueue(eventType string, data map[string]interface{}) {
	select {
	case n.queue <- event{eventType: eventType, data: data}:
	default:
		logger.WithFields(map[string]interface{}{
			"component": "WebhookNotifier",
			"event":     eventType,
		}).Warn("Webhook queue full, event dropped")
	}
}

func (n *Notifier) deliver(ctx context.Context, ev event) {
	if n.config.URL == "" {
		logger.WithFields(map[string]interface{}{
			"component": "WebhookNotifier",
			"event":     ev.eventType,
		}).Debug("Webhook URL not configured, skipping")
		return
	}

	payload := map[string]interface{}{
		"event": ev.eventType,
		"ts":    time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range ev.data {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.WithError(err).Error("Failed to serialize webhook payload")
		return
	}

	maxRetries := n.config.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(n.config.RetryBaseDelay * time.Duration(1<<uint(attempt-1))):
			}
		}

		statusCode, err := n.Deliver(ctx, ev.eventType, body, attempt)
		if err == nil && statusCode < 400 {
			return
		}
	}
}

// Deliver performs a single signed POST and records the attempt in the
// audit log. Returns the response status code (0 when the request never
// reached the destination).
func (n *Notifier) Deliver(ctx context.Context, eventType string, body []byte, attempt int) (int, error) {
	signature := Sign(n.config.Secret, body)

	entry := &model.WebhookLog{
		ID:         model.NewWebhookLogID(),
		Event:      eventType,
		URL:        n.config.URL,
		Payload:    string(body),
		Signature:  signature,
		RetryCount: attempt,
	}

	resp, err := n.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Signature", signature).
		SetBody(body).
		Post(n.config.URL)

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "WebhookNotifier",
			"event":     eventType,
			"attempt":   attempt,
		}).WithError(err).Error("Webhook delivery failed")

		n.record(ctx, entry)
		return 0, err
	}

	statusCode := resp.StatusCode()
	entry.StatusCode = &statusCode
	responseBody := resp.String()
	entry.Response = &responseBody

	if resp.IsError() {
		logger.WithFields(map[string]interface{}{
			"component":   "WebhookNotifier",
			"event":       eventType,
			"attempt":     attempt,
			"status_code": statusCode,
		}).Warn("Webhook delivery rejected by destination")
	} else {
		logger.WithFields(map[string]interface{}{
			"component":   "WebhookNotifier",
			"event":       eventType,
			"status_code": statusCode,
		}).Info("Webhook sent")
	}

	n.record(ctx, entry)
	return statusCode, nil
}

func (n *Notifier) record(ctx context.Context, entry *model.WebhookLog) {
	if n.logs == nil {
		return
	}
	if err := n.logs.Create(ctx, entry); err != nil {
		logger.WithError(err).Error("Failed to persist webhook log entry")
	}
}

// Sign computes the hex HMAC-SHA256 signature carried in X-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
