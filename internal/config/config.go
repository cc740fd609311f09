// Package config loads server settings from the environment. Command-line
// flags override what is loaded here.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every server setting.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `env:"TETHER_ADDR" envDefault:":4000"`

	// Scene is a scene file. Empty means the built-in scene.
	Scene string `env:"TETHER_SCENE"`

	// Journal is the SQLite journal path. Empty disables the journal.
	Journal string `env:"TETHER_JOURNAL"`

	// TickRate is snapshots per second.
	TickRate int `env:"TETHER_TICK_RATE" envDefault:"30"`

	// Step is simulated time per tick. Zero means one tick interval.
	Step time.Duration `env:"TETHER_STEP"`

	// CollisionClear is how long a body stays flagged after a collision.
	CollisionClear time.Duration `env:"TETHER_COLLISION_CLEAR" envDefault:"200ms"`

	// SendBuffer is the number of frames that may queue per connection.
	SendBuffer int `env:"TETHER_SEND_BUFFER" envDefault:"16"`

	OTelEndpoint string `env:"TETHER_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"TETHER_OTEL_ENABLED" envDefault:"true"`

	LogLevel  string `env:"TETHER_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TETHER_LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment. The result is not yet validated, so flags
// can still adjust it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick rate must be positive, got %d", c.TickRate))
	}
	if c.Step < 0 {
		errs = append(errs, fmt.Errorf("step must not be negative, got %s", c.Step))
	}
	if c.CollisionClear <= 0 {
		errs = append(errs, fmt.Errorf("collision clear delay must be positive, got %s", c.CollisionClear))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("send buffer must be positive, got %d", c.SendBuffer))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// TickInterval is the time between snapshots.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// StepDuration is the simulated time per tick.
func (c *Config) StepDuration() time.Duration {
	if c.Step > 0 {
		return c.Step
	}
	return c.TickInterval()
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// TracingEnabled reports whether spans should be exported.
func (c *Config) TracingEnabled() bool {
	return c.OTelEnabled && c.OTelEndpoint != ""
}
