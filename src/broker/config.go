package broker

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	VariantSim  = "sim"
	VariantGoex = "goex"
)

type Config struct {
	Variant        string        `envconfig:"BROKER" default:"sim"`
	APIKey         string        `envconfig:"BROKER_API_KEY"`
	APISecret      string        `envconfig:"BROKER_API_SECRET"`
	Endpoint       string        `envconfig:"BROKER_ENDPOINT"`
	ExecuteTimeout time.Duration `envconfig:"BROKER_EXECUTE_TIMEOUT" default:"10s"`
	MaxInflight    int64         `envconfig:"BROKER_MAX_INFLIGHT" default:"5"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// New selects the broker variant at process start. No runtime switching.
func New(cfg Config) (Broker, error) {
	switch cfg.Variant {
	case VariantSim:
		return NewSimBroker(), nil
	case VariantGoex:
		return NewGoexBroker(cfg), nil
	default:
		return nil, fmt.Errorf("unknown broker variant %q", cfg.Variant)
	}
}
