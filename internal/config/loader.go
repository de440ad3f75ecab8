package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"

	"xcbridgectl/internal/logger"
)

// Load reads the install configuration defaults from the environment.
// CLI flags are applied on top by the caller.
func Load() (Config, error) {
	return parse(nil)
}

func parse(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadLogging reads logger settings from the environment on top of
// logger.DefaultConfig.
func LoadLogging() (logger.Config, error) {
	return parseLogging(nil)
}

func parseLogging(environ map[string]string) (logger.Config, error) {
	lc := logger.DefaultConfig()
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&lc, opts); err != nil {
		return logger.Config{}, fmt.Errorf("parse logging env: %w", err)
	}
	return lc, nil
}

// LoadTarget derives the installation target for the current user.
func LoadTarget() (Target, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Target{}, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return NewTarget(home), nil
}
