package webhook

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	URL            string        `envconfig:"WEBHOOK_URL"`
	Secret         string        `envconfig:"WEBHOOK_SECRET" default:"change_me"`
	Timeout        time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"5s"`
	MaxRetries     int           `envconfig:"WEBHOOK_MAX_RETRIES" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"WEBHOOK_RETRY_BASE_DELAY" default:"500ms"`
	QueueSize      int           `envconfig:"WEBHOOK_QUEUE_SIZE" default:"256"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
