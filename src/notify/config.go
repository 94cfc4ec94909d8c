package notify

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	WebhookURL string `envconfig:"NOTIFY_WEBHOOK_URL"`
	BotName    string `envconfig:"NOTIFY_BOT_NAME" default:"papertrader"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
