// Package config loads application configuration from FAMGATE_-prefixed
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every knob the SDK, emulator and CLI consume.
type Config struct {
	// ProjectID identifies the backing database project.
	ProjectID string `envconfig:"PROJECT_ID" default:"famgate-dev"`

	// StoreDriver selects the docstore adapter: rest, memory, sqlite, postgres,
	// or auto (rest against BackendURL, memory when none is configured).
	StoreDriver string `envconfig:"STORE_DRIVER" default:"auto"`

	// BackendURL is the hosted document API (or emulator) base URL.
	BackendURL  string `envconfig:"BACKEND_URL" default:""`
	UseEmulator bool   `envconfig:"USE_EMULATOR" default:"false"`
	EmulatorURL string `envconfig:"EMULATOR_URL" default:"http://localhost:8790"`
	APIKey      string `envconfig:"API_KEY" default:""`

	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Request lifecycle.
	RequestExpiryHours int           `envconfig:"REQUEST_EXPIRY_HOURS" default:"24"`
	RequestRetention   time.Duration `envconfig:"REQUEST_RETENTION" default:"720h"`

	// Offline queue.
	OfflineMaxRetries   int           `envconfig:"OFFLINE_MAX_RETRIES" default:"3"`
	OfflineQueueTimeout time.Duration `envconfig:"OFFLINE_QUEUE_TIMEOUT" default:"5m"`

	// Connectivity probing.
	ProbeInterval time.Duration `envconfig:"PROBE_INTERVAL" default:"10s"`

	// Emulator HTTP server.
	HTTPPort int `envconfig:"HTTP_PORT" default:"8790"`
}

// ResolveDefaults validates driver selection and derives StoreDriver when set
// to auto.
func (c *Config) ResolveDefaults() error {
	if c.UseEmulator && c.BackendURL == "" {
		c.BackendURL = c.EmulatorURL
	}
	if c.StoreDriver == "" || c.StoreDriver == "auto" {
		if c.BackendURL != "" {
			c.StoreDriver = "rest"
		} else {
			c.StoreDriver = "memory"
		}
	}
	switch c.StoreDriver {
	case "rest", "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	if c.StoreDriver == "rest" && c.BackendURL == "" {
		return fmt.Errorf("STORE_DRIVER=rest requires BACKEND_URL")
	}
	if c.StoreDriver == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("STORE_DRIVER=sqlite requires SQLITE_PATH")
	}
	if c.StoreDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_DSN")
	}
	if c.RequestExpiryHours <= 0 {
		return fmt.Errorf("REQUEST_EXPIRY_HOURS must be positive")
	}
	return nil
}

// RequestExpiry returns the pending-request horizon as a duration.
func (c *Config) RequestExpiry() time.Duration {
	return time.Duration(c.RequestExpiryHours) * time.Hour
}

// New parses FAMGATE_* environment variables into a validated Config.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("FAMGATE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
