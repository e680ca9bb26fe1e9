package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Skotchmaster/souq/pkg/config"
	"github.com/Skotchmaster/souq/pkg/hash"
)

type ServiceConfig struct {
	config.Config

	AdminSecretHash string
	Timezone        string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	CORSOrigins        []string
	LoginRatePerMinute int
	LowStockThreshold  int
	OutboxSize         int
}

func FromEnv() ServiceConfig {
	return ServiceConfig{
		Config:             config.Load(),
		AdminSecretHash:    os.Getenv("ADMIN_SECRET_HASH"),
		Timezone:           config.EnvDefault("SHOP_TIMEZONE", "Africa/Casablanca"),
		ESURL:              os.Getenv("ES_URL"),
		ESUser:             os.Getenv("ES_USER"),
		ESPassword:         os.Getenv("ES_PASSWORD"),
		ESIndex:            config.EnvDefault("ES_INDEX", "products"),
		CORSOrigins:        config.CSV(config.EnvDefault("CORS_ORIGINS", "*")),
		LoginRatePerMinute: config.EnvIntDefault("LOGIN_RATE_PER_MINUTE", 5),
		LowStockThreshold:  config.EnvIntDefault("LOW_STOCK_THRESHOLD", 5),
		OutboxSize:         config.EnvIntDefault("OUTBOX_SIZE", 256),
	}
}

// Load reads the environment and exits when a required key is missing.
func Load() ServiceConfig {
	cfg := FromEnv()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "storefront"
	}

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustNonEmptyBytes(cfg.JWTRefreshSecret, "JWT_REFRESH_SECRET")

	if cfg.AdminSecretHash == "" {
		secret := os.Getenv("ADMIN_SECRET")
		config.MustNonEmpty(secret, "ADMIN_SECRET or ADMIN_SECRET_HASH")
		h, err := hash.HashSecret(secret)
		if err != nil {
			panic(fmt.Sprintf("hash admin secret: %v", err))
		}
		cfg.AdminSecretHash = h
	}
	return cfg
}

func (c ServiceConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("SHOP_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
