// Package config loads the service configuration from POSTS_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from every environment variable before mapping.
const EnvPrefix = "POSTS_"

// Storage drivers.
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config is the root configuration object.
type Config struct {
	Env     string        `koanf:"env" validate:"required"`
	Server  ServerConfig  `koanf:"server" validate:"required"`
	Storage StorageConfig `koanf:"storage" validate:"required"`
	Log     LogConfig     `koanf:"log" validate:"required"`
}

// ServerConfig groups settings for the HTTP server. Timeouts are seconds.
type ServerConfig struct {
	Port            string `koanf:"port" validate:"required"`
	BasePath        string `koanf:"base_path" validate:"required,startswith=/,ne=/"`
	ReadTimeout     int    `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    int    `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     int    `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout int    `koanf:"shutdown_timeout" validate:"gt=0"`
}

// StorageConfig selects and addresses the post store.
type StorageConfig struct {
	Driver        string `koanf:"driver" validate:"required,oneof=badger sqlite mongo"`
	Path          string `koanf:"path" validate:"required_if=Driver badger"`
	DSN           string `koanf:"dsn" validate:"required_if=Driver sqlite"`
	MongoURL      string `koanf:"mongo_url" validate:"required_if=Driver mongo"`
	MongoDatabase string `koanf:"mongo_database" validate:"required_if=Driver mongo"`
	// InMemory runs badger without touching disk. Tests only.
	InMemory bool `koanf:"in_memory"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level string `koanf:"level" validate:"required,oneof=trace debug info warn error"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Port:            "8080",
			BasePath:        "/api/posts",
			ReadTimeout:     15,
			WriteTimeout:    15,
			IdleTimeout:     60,
			ShutdownTimeout: 10,
		},
		Storage: StorageConfig{
			Driver:        DriverBadger,
			Path:          "data/badger",
			DSN:           "data/posts.db",
			MongoURL:      "mongodb://localhost:27017",
			MongoDatabase: "posts",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads POSTS_* variables over the defaults and validates the result.
//
// The first underscore after the prefix separates the section from the key:
// POSTS_SERVER_READ_TIMEOUT maps to server.read_timeout, POSTS_ENV to env.
func Load() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

// Seconds converts a timeout setting to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
