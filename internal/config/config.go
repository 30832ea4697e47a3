// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the API server configuration.
type Config struct {
	Port                 string        `env:"PORT" envDefault:"8080"`
	FrontendURL          string        `env:"FRONTEND_URL"`
	DBPath               string        `env:"DB_PATH" envDefault:"./data/storefront.db"`
	JWTSecret            string        `env:"JWT_SECRET"`
	TokenIssuer          string        `env:"TOKEN_ISSUER" envDefault:"storefront"`
	TokenTTL             time.Duration `env:"TOKEN_TTL" envDefault:"72h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
	GRPCHealthPort       string        `env:"GRPC_HEALTH_PORT"`
	SeedCatalog          bool          `env:"SEED_CATALOG" envDefault:"true"`
}

// ShellConfig holds configuration for the headless application shell.
type ShellConfig struct {
	Port            string        `env:"SHELL_PORT" envDefault:"8081"`
	APIBaseURL      string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	TokenPath       string        `env:"TOKEN_PATH" envDefault:"./data/shell/token"`
	InitialRoute    string        `env:"INITIAL_ROUTE" envDefault:"/(tabs)"`
	ThemeBackground string        `env:"THEME_BACKGROUND" envDefault:"#F5F5F5"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	// AllowedOrigin may open the preview socket. Empty means same origin only.
	AllowedOrigin string `env:"SHELL_ALLOWED_ORIGIN"`
	AppEnv        string `env:"APP_ENV"`
}

// Load reads the server configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = "dev-only-insecure-secret"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set outside development")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 bytes")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be > 0")
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if appEnv := os.Getenv("APP_ENV"); appEnv != "" {
		return appEnv == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// LoadShell reads the shell configuration from environment variables.
func LoadShell() (*ShellConfig, error) {
	cfg := &ShellConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shell configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the shell configuration.
func (c *ShellConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("SHELL_PORT cannot be empty")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}
	if c.TokenPath == "" {
		return fmt.Errorf("TOKEN_PATH cannot be empty")
	}
	if !strings.HasPrefix(c.InitialRoute, "/") {
		return fmt.Errorf("INITIAL_ROUTE must start with /")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0")
	}
	if c.AllowedOrigin != "" && c.AllowedOrigin != "*" && !strings.Contains(c.AllowedOrigin, "://") {
		return fmt.Errorf("SHELL_ALLOWED_ORIGIN must be an origin such as http://localhost:5173")
	}
	return nil
}

// IsDevelopment returns true if the shell runs with APP_ENV=development.
func (c *ShellConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}
