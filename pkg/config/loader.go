package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables using `env` and `envDefault`
// struct tags.
func Load(cfg any) error {
	return LoadWithPrefix("", cfg)
}

// LoadWithPrefix is Load with every variable name prefixed, so that
// REVIEW_HTTP_PORT can feed a field tagged `env:"HTTP_PORT"`.
func LoadWithPrefix(prefix string, cfg any) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
