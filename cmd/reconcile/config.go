package reconcile

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// StaleAfter is how old an accepted/pending order must be before the
	// sweep cancels it.
	StaleAfter time.Duration `envconfig:"RECONCILE_STALE_AFTER" default:"10m"`
	Timeout    time.Duration `envconfig:"RECONCILE_TIMEOUT" default:"60s"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
