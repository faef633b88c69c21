package core

import (
	"fmt"
	"strings"
	"time"
)

type TokenConfig struct {
	Lifetime int `koanf:"lifetime" mapstructure:"lifetime"`
	Bytes    int `koanf:"bytes" mapstructure:"bytes"`
}

type SweepConfig struct {
	Interval  time.Duration `koanf:"interval" mapstructure:"interval"`
	BatchSize int           `koanf:"batch_size" mapstructure:"batch_size"`
}

type Config struct {
	ServiceName   string      `koanf:"service_name" mapstructure:"service_name"`
	DefaultEntity string      `koanf:"default_entity" mapstructure:"default_entity"`
	SearchLimit   int         `koanf:"search_limit" mapstructure:"search_limit"`
	Token         TokenConfig `koanf:"token" mapstructure:"token"`
	Sweep         SweepConfig `koanf:"sweep" mapstructure:"sweep"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "gateway",
		// Legacy deployments address the contact entity when no model is
		// named; kept as an explicit configuration value rather than a
		// hardcoded route default.
		DefaultEntity: "res.partner",
		SearchLimit:   80,
		Token: TokenConfig{
			Lifetime: 3600,
			Bytes:    64,
		},
		Sweep: SweepConfig{
			Interval:  15 * time.Minute,
			BatchSize: 500,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.DefaultEntity) == "" {
		return fmt.Errorf("core: default_entity is required")
	}
	if c.SearchLimit < 0 {
		return fmt.Errorf("core: search_limit must not be negative")
	}
	if c.Token.Lifetime < 0 {
		return fmt.Errorf("core: token lifetime must not be negative")
	}
	if c.Token.Bytes != 0 && c.Token.Bytes < 32 {
		return fmt.Errorf("core: token entropy below 32 bytes is not allowed")
	}
	return nil
}

func (c Config) tokenLifetime() time.Duration {
	if c.Token.Lifetime <= 0 {
		return time.Duration(DefaultConfig().Token.Lifetime) * time.Second
	}
	return time.Duration(c.Token.Lifetime) * time.Second
}

func (c Config) tokenBytes() int {
	if c.Token.Bytes <= 0 {
		return DefaultConfig().Token.Bytes
	}
	return c.Token.Bytes
}

func (c Config) searchLimit() int {
	if c.SearchLimit <= 0 {
		return DefaultConfig().SearchLimit
	}
	return c.SearchLimit
}
