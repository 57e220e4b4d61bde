package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: identity backend client, post-login routing and the dev identity backend
//   - database.go: PostgreSQL and Redis configuration
//   - http.go: listener addresses
//   - services.go: service modes
//   - sync.go: cross-context sync bridge configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Services is a comma-delimited list of enabled modes (host, portal, idp).
	Services string `env:"SERVICES" envDefault:"host"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Identity    IdentityConfig    `envPrefix:"IDENTITY_"`
	Auth        AuthConfig        `envPrefix:"AUTH_"`
	DevIdentity DevIdentityConfig `envPrefix:"DEV_IDENTITY_"`
	Sync        SyncConfig        `envPrefix:"SYNC_"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.detectDevMode()

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}

	c.Identity.Sanitize()
	c.Auth.Sanitize()
	c.DevIdentity.Sanitize()
	c.Sync.Sanitize()
	c.Redis.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()
}

// detectDevMode falls back to APP_ENV when DEV is unset.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHostEnabled returns true if the host (PWA shell) service is enabled.
func (c *AppConfig) IsHostEnabled() bool {
	return c.isEnabled(ServiceModeHost)
}

// IsPortalEnabled returns true if the portal instrumentation service is enabled.
func (c *AppConfig) IsPortalEnabled() bool {
	return c.isEnabled(ServiceModePortal)
}

// IsIdentityEnabled returns true if the development identity backend is enabled.
func (c *AppConfig) IsIdentityEnabled() bool {
	return c.isEnabled(ServiceModeIdentity)
}

func (c *AppConfig) isEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}
