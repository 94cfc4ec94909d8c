package controller

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	FillCheckDelay   time.Duration `envconfig:"FILL_CHECK_DELAY" default:"2s"`
	FillCheckTimeout time.Duration `envconfig:"FILL_CHECK_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
