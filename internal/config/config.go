// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Generation backends.
const (
	GenerationBackendMock = "mock"
	GenerationBackendHTTP = "http"
)

// Metrics backends.
const (
	MetricsPrometheus = "prometheus"
	MetricsMemory     = "memory"
	MetricsNone       = "none"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"migrations"`

	// Cache (Redis)
	RedisURL      string `env:"REDIS_URL,required"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. Write timeout must exceed the generation timeout.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"45s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Identity provider
	IdentityURL       string        `env:"IDENTITY_URL,required"`
	IdentityAnonKey   string        `env:"IDENTITY_ANON_KEY" envDefault:""`
	IdentityTimeout   time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"5s"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"sb-access-token"`

	// Gate targets
	LoginPath        string `env:"LOGIN_PATH" envDefault:"/login"`
	OnboardingPath   string `env:"ONBOARDING_PATH" envDefault:"/onboarding"`
	SetupProfilePath string `env:"SETUP_PROFILE_PATH" envDefault:"/setup-profile"`
	FrontendURL      string `env:"FRONTEND_URL" envDefault:""`

	// Generation backend
	GenerationBackend       string        `env:"GENERATION_BACKEND" envDefault:"mock"`
	GenerationURL           string        `env:"GENERATION_URL" envDefault:""`
	GenerationAPIKey        string        `env:"GENERATION_API_KEY" envDefault:""`
	GenerationSigningSecret string        `env:"GENERATION_SIGNING_SECRET" envDefault:""`
	GenerationTimeout       time.Duration `env:"GENERATION_TIMEOUT" envDefault:"30s"`
	GenerationRPS           float64       `env:"GENERATION_RPS" envDefault:"5"`
	GenerationBurst         int           `env:"GENERATION_BURST" envDefault:"10"`
	MockGenerationDelay     time.Duration `env:"MOCK_GENERATION_DELAY" envDefault:"1s"`

	// Rate limiting
	RateLimitEnabled         bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitGenerationRPM   int  `env:"RATE_LIMIT_GENERATION_RPM" envDefault:"20"`
	RateLimitGenerationBurst int  `env:"RATE_LIMIT_GENERATION_BURST" envDefault:"5"`
	RateLimitIPRPS           int  `env:"RATE_LIMIT_IP_RPS" envDefault:"20"`
	RateLimitIPBurst         int  `env:"RATE_LIMIT_IP_BURST" envDefault:"40"`

	// Usage pipeline and metrics
	UsageWorkerEnabled bool   `env:"USAGE_WORKER_ENABLED" envDefault:"true"`
	MetricsBackend     string `env:"METRICS_BACKEND" envDefault:"prometheus"`

	// Plan catalog synced at startup
	PlansFile string `env:"PLANS_FILE" envDefault:""`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.GenerationBackend {
	case GenerationBackendMock:
	case GenerationBackendHTTP:
		if c.GenerationURL == "" {
			errs = append(errs, errors.New("GENERATION_URL is required when GENERATION_BACKEND=http"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GENERATION_BACKEND %q", c.GenerationBackend))
	}

	switch c.MetricsBackend {
	case MetricsPrometheus, MetricsMemory, MetricsNone:
	default:
		errs = append(errs, fmt.Errorf("unknown METRICS_BACKEND %q", c.MetricsBackend))
	}

	if c.GenerationTimeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be positive"))
	}
	if c.WriteTimeout > 0 && c.WriteTimeout <= c.GenerationTimeout {
		errs = append(errs, errors.New("WRITE_TIMEOUT must exceed GENERATION_TIMEOUT"))
	}
	if c.IdentityTimeout <= 0 {
		errs = append(errs, errors.New("IDENTITY_TIMEOUT must be positive"))
	}
	if c.GenerationRPS <= 0 || c.GenerationBurst <= 0 {
		errs = append(errs, errors.New("GENERATION_RPS and GENERATION_BURST must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing or values are inconsistent.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
