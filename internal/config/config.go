// Package config loads the worker host configuration.
//
// Sources, from lowest to highest priority:
//  1. defaults in code
//  2. an optional YAML file
//  3. LOCALINK_* environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "LOCALINK_"

// Config holds all settings of a worker host or client.
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Worker    WorkerConfig    `yaml:"worker" envPrefix:"WORKER_"`
	Defaults  DefaultsConfig  `yaml:"defaults" envPrefix:"DEFAULT_"`
	Discovery DiscoveryConfig `yaml:"discovery" envPrefix:"DISCOVERY_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig controls the WebSocket endpoint.
type ServerConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT" validate:"min=1,max=65535"`
	Path string `yaml:"path" env:"PATH" validate:"required,startswith=/"`
}

// WorkerConfig controls the worker pool.
type WorkerConfig struct {
	Count     int `yaml:"count" env:"COUNT" validate:"min=1,max=256"`
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE" validate:"min=1"`

	// DropUnsupported restores the historical behaviour of sending no reply
	// at all for unknown operations.
	DropUnsupported bool `yaml:"drop_unsupported" env:"DROP_UNSUPPORTED"`

	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" validate:"gt=0"`
}

// DefaultsConfig supplies values for optional request fields.
type DefaultsConfig struct {
	Tolerance       float64 `yaml:"tolerance" env:"TOLERANCE" validate:"gte=0"`
	OnlineTolerance float64 `yaml:"online_tolerance" env:"ONLINE_TOLERANCE" validate:"gte=0"`
	Intensity       float64 `yaml:"intensity" env:"INTENSITY" validate:"gte=0,lte=1"`
	Radius          float64 `yaml:"radius" env:"RADIUS" validate:"gte=0"`
}

// DiscoveryConfig controls mDNS advertisement and browsing.
type DiscoveryConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	Service string        `yaml:"service" env:"SERVICE" validate:"required"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gt=0"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8888,
			Path: "/worker",
		},
		Worker: WorkerConfig{
			Count:          4,
			QueueSize:      64,
			RequestTimeout: 5 * time.Second,
		},
		Defaults: DefaultsConfig{
			Tolerance:       1,
			OnlineTolerance: 3,
			Intensity:       0.5,
			Radius:          10,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
			Service: "_localink._tcp",
			Timeout: 3 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks all fields of c.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		v := verrs[0]
		return fmt.Errorf("invalid configuration: %s failed %q (value %v)", v.Namespace(), v.Tag(), v.Value())
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

// Addr returns the listen address of the server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
