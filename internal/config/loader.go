package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// devTokenSecret is only used when no secret is configured. Production
	// deployments set AUTH_TOKEN_SECRET.
	devTokenSecret = "questd-development-token-secret-change-me"
)

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_HTTP_PORT, PLANNER_API_KEY, etc.)
//  2. YAML config file (~/.config/questd/config.yaml by default)
//  3. Hardcoded defaults
//
// A missing file is not an error. An existing file must be 0600 or 0400,
// at most 1MB, and live under ~/.config/questd/ or /etc/questd/.
//
// Environment variables split on the first underscore into section and
// field:
//
//	SERVER_HTTP_PORT  -> server.http_port
//	PLANNER_API_KEY   -> planner.api_key
//	DATABASE_DSN      -> database.dsn
//
// GOOGLE_API_KEY is honoured as a fallback for planner.api_key.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "questd", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Validate through the opened descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !cfg.Planner.APIKey.IsSet() {
		cfg.Planner.APIKey = Secret(os.Getenv("GOOGLE_API_KEY"))
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// validateConfigPath checks that path resolves into an allowed directory.
// Runs even if the file does not exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "questd"),
		"/etc/questd",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/questd/ or /etc/questd/")
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	// Env values arrive comma split but untrimmed.
	cfg.Server.CORSOrigins = splitList(strings.Join(cfg.Server.CORSOrigins, ","))
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{
			"http://localhost",
			"http://localhost:3000",
			"http://localhost:8080",
		}
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if !cfg.Database.DSN.IsSet() && cfg.Database.Driver == DriverSQLite {
		cfg.Database.DSN = Secret("file:questd.db")
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}

	if !cfg.Auth.TokenSecret.IsSet() {
		cfg.Auth.TokenSecret = Secret(devTokenSecret)
	}
	if cfg.Auth.TokenTTLMinutes == 0 {
		cfg.Auth.TokenTTLMinutes = 30
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "questd"
	}

	if cfg.Planner.Provider == "" {
		cfg.Planner.Provider = ProviderGemini
	}
	if cfg.Planner.Model == "" {
		switch cfg.Planner.Provider {
		case ProviderOpenAI:
			cfg.Planner.Model = "gpt-4o-mini"
		default:
			cfg.Planner.Model = "gemini-1.5-flash"
		}
	}
	if cfg.Planner.Timeout == 0 {
		cfg.Planner.Timeout = 30 * time.Second
	}
	if cfg.Planner.MinPoints == 0 {
		cfg.Planner.MinPoints = 10
	}
	if cfg.Planner.MaxPoints == 0 {
		cfg.Planner.MaxPoints = 100
	}
	if cfg.Planner.MaxPromptLength == 0 {
		cfg.Planner.MaxPromptLength = 2000
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "questd"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "questd"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
