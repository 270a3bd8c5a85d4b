package boot

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	DeliveryModePush = "push"
	DeliveryModePull = "pull"
)

type Config struct {
	Env           string        `env:"ENV,default=dev"`
	Port          int           `env:"GW_PORT,default=3000"`
	MetricsPort   int           `env:"METRICS_PORT,default=8081"`
	SharedSecret  string        `env:"GATEWAY_SECRET"`
	DeliveryMode  string        `env:"DELIVERY_MODE,default=pull"`
	HubURL        string        `env:"HUB_URL,default=http://127.0.0.1:8000/webhook/whatsapp"`
	HubTimeout    time.Duration `env:"HUB_TIMEOUT,default=10s"`
	QueueCapacity int           `env:"QUEUE_CAPACITY,default=1000"`
	BridgeURL     string        `env:"BRIDGE_URL,default=http://127.0.0.1:8765"`
	DataDirectory string        `env:"DATA_DIR,default=."`
}

func Load() (*Config, error) {
	config := &Config{}
	if err := envconfig.Process(context.Background(), config); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}

	// Mutating routes must never come up without a secret to gate them.
	if config.SharedSecret == "" {
		return nil, fmt.Errorf("GATEWAY_SECRET is required")
	}

	switch config.DeliveryMode {
	case DeliveryModePush:
		if config.HubURL == "" {
			return nil, fmt.Errorf("HUB_URL is required in push mode")
		}
	case DeliveryModePull:
	default:
		return nil, fmt.Errorf("unknown delivery mode: %s", config.DeliveryMode)
	}

	return config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "dev"
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod"
}
