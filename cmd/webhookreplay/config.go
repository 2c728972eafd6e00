package webhookreplay

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BatchSize int           `envconfig:"WEBHOOK_REPLAY_BATCH_SIZE" default:"50"`
	Timeout   time.Duration `envconfig:"WEBHOOK_REPLAY_TIMEOUT" default:"60s"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
