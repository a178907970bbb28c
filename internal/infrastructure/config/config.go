package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth  AuthConfig
	Mongo MongoConfig
	Redis RedisConfig
	Hooks HooksConfig
}

type AuthConfig struct {
	AccessSecret      string `env:"JWT_ACCESS_SECRET,  required"`
	RefreshSecret     string `env:"JWT_REFRESH_SECRET, required"`
	AccessTTLMinutes  int    `env:"ACCESS_TOKEN_TTL_MINUTES, default=15"`
	RefreshTTLDays    int    `env:"REFRESH_TOKEN_TTL_DAYS,   default=30"`
	BcryptCost        int    `env:"BCRYPT_COST,              default=12"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=betterintelligence"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

type HooksConfig struct {
	// DeliveryTimeout bounds each outbound webhook POST.
	DeliveryTimeout time.Duration `env:"HOOK_DELIVERY_TIMEOUT, default=10s"`
}

// AccessTTL returns the configured access token lifetime.
func (c AuthConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

// RefreshTTL returns the configured refresh token lifetime.
func (c AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
