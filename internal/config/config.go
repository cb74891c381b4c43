package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Sweep    SweepConfig
	SMS      SMSConfig
	WhatsApp WhatsAppConfig
}

type ServerConfig struct {
	Address string `env:"SERVER_ADDRESS" envDefault:":8080"`
}

type DatabaseConfig struct {
	PostgresURL string `env:"POSTGRES_URL,required"`
}

type RedisConfig struct {
	Address  string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REDIS_TTL" envDefault:"24h"`
}

// Enabled reports whether a Redis result cache is configured at all; the
// engine runs fine without one.
func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

type SweepConfig struct {
	Interval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"15m"`
	BatchLimit int           `env:"SWEEP_BATCH_LIMIT" envDefault:"50"`
	Budget     time.Duration `env:"SWEEP_BUDGET" envDefault:"540s"`
	Workers    int           `env:"SWEEP_WORKERS" envDefault:"4"`
}

// SMSConfig carries the process-level SMS gateway credentials. Leaving
// them unset turns every SMS send into a configuration failure.
type SMSConfig struct {
	APIURL string `env:"SMS_API_URL"`
	APIKey string `env:"SMS_API_KEY"`
	From   string `env:"SMS_FROM"`
}

type WhatsAppConfig struct {
	APIURL string `env:"WHATSAPP_API_URL"`
	Token  string `env:"WHATSAPP_TOKEN"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Sweep.Interval <= 0 {
		return errors.New("SWEEP_INTERVAL must be > 0")
	}
	if cfg.Sweep.BatchLimit <= 0 {
		return errors.New("SWEEP_BATCH_LIMIT must be > 0")
	}
	if cfg.Sweep.Budget <= 0 {
		return errors.New("SWEEP_BUDGET must be > 0")
	}
	if cfg.Sweep.Workers <= 0 {
		return errors.New("SWEEP_WORKERS must be > 0")
	}
	if cfg.Redis.Enabled() && cfg.Redis.TTL <= 0 {
		return errors.New("REDIS_TTL must be > 0")
	}
	return nil
}
