package risk

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	SymbolWhitelist []string `envconfig:"RISK_SYMBOL_WHITELIST" default:"BTC/USDT,ETH/USDT,SOL/USDT"`
	MaxPositionUSD  float64  `envconfig:"RISK_MAX_POSITION_USD" default:"5000"`
	MaxDailyLossUSD float64  `envconfig:"RISK_MAX_DAILY_LOSS_USD" default:"500"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
