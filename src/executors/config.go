package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	PositionsInterval time.Duration `envconfig:"POSITIONS_INTERVAL" default:"30s"`
	AccountInterval   time.Duration `envconfig:"ACCOUNT_INTERVAL" default:"60s"`
	AccountCacheCost  int64         `envconfig:"ACCOUNT_CACHE_MAX_COST" default:"1000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
