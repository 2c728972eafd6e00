package auth

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// APIToken is the shared bearer token compared in constant time.
	APIToken string `envconfig:"API_TOKEN" default:"change_me"`
	// APITokenHash, when set, takes precedence over APIToken and holds a
	// bcrypt hash of the expected token.
	APITokenHash string `envconfig:"API_TOKEN_HASH"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
