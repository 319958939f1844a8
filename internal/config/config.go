// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable the service reads at startup. The signing secret
// is consumed once during key derivation and never logged.
type Config struct {
	ListenAddr string `env:"WJ_LISTEN_ADDR" envDefault:":8000"`

	// Exactly one of Mnemonic or PrivateKeyHex must be set. PrivateKeyHex
	// wins when both are present.
	Mnemonic      string `env:"WJ_MNEMONIC,unset"`
	PrivateKeyHex string `env:"WJ_PRIVATE_KEY,unset"`
	Passphrase    string `env:"WJ_PASSPHRASE,unset"`

	EngineURL     string        `env:"WJ_ENGINE_URL" envDefault:"https://api.cerebras.ai/v1/chat/completions"`
	EngineAPIKey  string        `env:"WJ_ENGINE_API_KEY,unset"`
	EngineModel   string        `env:"WJ_ENGINE_MODEL" envDefault:"qwen-3-235b-a22b-thinking-2507"`
	EngineTimeout time.Duration `env:"WJ_ENGINE_TIMEOUT" envDefault:"30s"`

	RequestTimeout  time.Duration `env:"WJ_REQUEST_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"WJ_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	GinMode string `env:"WJ_GIN_MODE" envDefault:"release"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that env tags cannot express.
func (c *Config) Validate() error {
	if c.Mnemonic == "" && c.PrivateKeyHex == "" {
		return fmt.Errorf("a signing secret is required: set WJ_MNEMONIC or WJ_PRIVATE_KEY")
	}
	if c.EngineURL == "" {
		return fmt.Errorf("WJ_ENGINE_URL must not be empty")
	}
	if c.EngineTimeout <= 0 {
		return fmt.Errorf("WJ_ENGINE_TIMEOUT must be positive")
	}
	return nil
}
