package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	APIKey      string        `envconfig:"ALPACA_API_KEY"`
	APISecret   string        `envconfig:"ALPACA_SECRET_KEY"`
	BaseURL     string        `envconfig:"ALPACA_BASE_URL" default:"https://paper-api.alpaca.markets/v2"`
	StreamURL   string        `envconfig:"ALPACA_STREAM_URL" default:"wss://paper-api.alpaca.markets/stream"`
	Timeout     time.Duration `envconfig:"ALPACA_TIMEOUT" default:"15s"`
	ReadRetries int           `envconfig:"ALPACA_READ_RETRIES" default:"0"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// SharedCredentials returns the deployment-wide paper account.
func (c Config) SharedCredentials() Credentials {
	return Credentials{
		KeyID:     c.APIKey,
		Secret:    c.APISecret,
		BaseURL:   c.BaseURL,
		StreamURL: c.StreamURL,
	}
}
