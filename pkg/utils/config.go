// Package utils holds process-level configuration shared by the binaries.
package utils

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig is everything the server binaries read from the environment.
type AppConfig struct {
	HTTPAddr    string        `env:"NOVELHUB_HTTP_ADDR" envDefault:":8080"`
	SyncAddr    string        `env:"NOVELHUB_SYNC_ADDR" envDefault:":9090"`
	JWTSecret   string        `env:"NOVELHUB_JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer   string        `env:"NOVELHUB_JWT_ISSUER" envDefault:"novelhub"`
	JWTDuration time.Duration `env:"NOVELHUB_JWT_TTL" envDefault:"24h"`
}

func LoadAppConfig() (AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse app config: %w", err)
	}
	return cfg, nil
}
