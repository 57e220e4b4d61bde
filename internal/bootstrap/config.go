package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/target/sitegate/config"
)

var logLevel = new(slog.LevelVar)

// InitLogger initializes the structured logger at info level.
// SetLogLevel adjusts it once configuration is loaded.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// SetLogLevel applies a configured level (debug, info, warn, error) to the logger from InitLogger.
func SetLogLevel(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logLevel.Set(l)
	return nil
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig validates that at least one service is enabled and that
// each enabled mode has what it needs to start.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}

	var errs []error
	if services[config.ServiceModeHost] {
		if cfg.Identity.BaseURL == "" {
			errs = append(errs, errors.New("host: IDENTITY_BASE_URL is required"))
		}
		if cfg.Sync.SelfOrigin == "" {
			errs = append(errs, errors.New("host: SYNC_SELF_ORIGIN is required"))
		}
	}
	if services[config.ServiceModePortal] {
		if cfg.Sync.PortalOrigin == "" {
			errs = append(errs, errors.New("portal: SYNC_PORTAL_ORIGIN is required"))
		}
		if cfg.Sync.HostURL == "" {
			errs = append(errs, errors.New("portal: SYNC_HOST_URL is required"))
		}
	}
	if services[config.ServiceModeIdentity] && cfg.DevIdentity.Secret == "" {
		errs = append(errs, errors.New("idp: DEV_IDENTITY_SECRET is required"))
	}
	return errors.Join(errs...)
}

// GetEnabledServices returns a sorted list of enabled service names.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// Return empty list on error - validation will catch this
		return []string{}
	}

	enabledServices := make([]string, 0, len(services))
	for svc := range services {
		enabledServices = append(enabledServices, string(svc))
	}
	sort.Strings(enabledServices)
	return enabledServices
}
