// Package config provides configuration loading for questd.
//
// Configuration is assembled from defaults, an optional YAML file and
// environment variables (see LoadWithFile). Every section carries its own
// defaults so a bare environment yields a runnable development server backed
// by a local SQLite file.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete questd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Auth          AuthConfig          `koanf:"auth"`
	Planner       PlannerConfig       `koanf:"planner"`
	Events        EventsConfig        `koanf:"events"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// DatabaseConfig selects and tunes the storage backend.
type DatabaseConfig struct {
	Driver       string `koanf:"driver"` // "sqlite" or "postgres"
	DSN          Secret `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	TokenSecret     Secret `koanf:"token_secret"`
	TokenTTLMinutes int    `koanf:"token_ttl_minutes"`
	Issuer          string `koanf:"issuer"`
}

// TokenTTL returns the configured token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

// UsesDevSecret reports whether tokens are signed with the built-in
// development secret.
func (a AuthConfig) UsesDevSecret() bool {
	return a.TokenSecret.Value() == devTokenSecret
}

// PlannerConfig configures the mission planning generator.
//
// An empty APIKey is a valid configuration: the planner is still built and
// reports itself as misconfigured when asked to generate.
type PlannerConfig struct {
	Provider        string        `koanf:"provider"` // "gemini" or "openai"
	APIKey          Secret        `koanf:"api_key"`
	Model           string        `koanf:"model"`
	BaseURL         string        `koanf:"base_url"`
	Timeout         time.Duration `koanf:"timeout"`
	MinPoints       int           `koanf:"min_points"`
	MaxPoints       int           `koanf:"max_points"`
	MaxPromptLength int           `koanf:"max_prompt_length"`
}

// EventsConfig configures domain event publishing. Empty NATSURL disables it.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
}

// LoggingConfig holds the logger level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	minTokenSecretLen = 32
)

// Default returns a configuration populated with development defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if !c.Database.DSN.IsSet() {
		return errors.New("database dsn is required")
	}

	if len(c.Auth.TokenSecret.Value()) < minTokenSecretLen {
		return fmt.Errorf("auth token secret must be at least %d bytes", minTokenSecretLen)
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return errors.New("auth token ttl must be positive")
	}

	switch c.Planner.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported planner provider %q", c.Planner.Provider)
	}
	if c.Planner.Timeout <= 0 {
		return errors.New("planner timeout must be positive")
	}
	if c.Planner.MinPoints <= 0 {
		return fmt.Errorf("planner min_points must be positive, got %d", c.Planner.MinPoints)
	}
	if c.Planner.MaxPoints < c.Planner.MinPoints {
		return fmt.Errorf("planner max_points (%d) below min_points (%d)", c.Planner.MaxPoints, c.Planner.MinPoints)
	}
	if c.Planner.MaxPromptLength < 10 {
		return fmt.Errorf("planner max_prompt_length must be at least 10, got %d", c.Planner.MaxPromptLength)
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}
