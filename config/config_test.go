package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func parseEnv(t *testing.T, vars map[string]string) AppConfig {
	t.Helper()
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - host",
			input:    "host",
			expected: map[ServiceMode]bool{ServiceModeHost: true},
		},
		{
			name:     "single service - idp",
			input:    "idp",
			expected: map[ServiceMode]bool{ServiceModeIdentity: true},
		},
		{
			name:  "all services with whitespace and case",
			input: " host , Portal,idp ",
			expected: map[ServiceMode]bool{
				ServiceModeHost:     true,
				ServiceModePortal:   true,
				ServiceModeIdentity: true,
			},
		},
		{
			name:     "duplicate and empty entries",
			input:    "portal,,portal",
			expected: map[ServiceMode]bool{ServiceModePortal: true},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only separators",
			input:       " , ,",
			expectError: true,
		},
		{
			name:        "unknown service",
			input:       "host,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		services string
		host     bool
		portal   bool
		idp      bool
	}{
		{services: "host", host: true},
		{services: "portal", portal: true},
		{services: "host,idp", host: true, idp: true},
		{services: "host,portal,idp", host: true, portal: true, idp: true},
		{services: "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.services, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}
			if got := cfg.IsHostEnabled(); got != tt.host {
				t.Errorf("IsHostEnabled() = %v, want %v", got, tt.host)
			}
			if got := cfg.IsPortalEnabled(); got != tt.portal {
				t.Errorf("IsPortalEnabled() = %v, want %v", got, tt.portal)
			}
			if got := cfg.IsIdentityEnabled(); got != tt.idp {
				t.Errorf("IsIdentityEnabled() = %v, want %v", got, tt.idp)
			}
		})
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	for _, m := range modes {
		if _, err := ParseServices(string(m)); err != nil {
			t.Errorf("mode %q does not parse: %v", m, err)
		}
	}
	if len(modes) != 3 {
		t.Fatalf("expected 3 modes, got %d", len(modes))
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	cfg := parseEnv(t, map[string]string{})
	cfg.Sanitize()

	if cfg.Services != "host" {
		t.Errorf("Services = %q", cfg.Services)
	}
	if cfg.Auth.AdminDestination != "/admin" || cfg.Auth.DefaultDestination != "/portal" {
		t.Errorf("unexpected destinations: %+v", cfg.Auth)
	}
	if cfg.Auth.WatchdogTimeout != 10*time.Second {
		t.Errorf("WatchdogTimeout = %v", cfg.Auth.WatchdogTimeout)
	}
	if cfg.Sync.PollInterval != time.Second {
		t.Errorf("PollInterval = %v", cfg.Sync.PollInterval)
	}
	if cfg.Identity.Timeout != 10*time.Second {
		t.Errorf("Identity.Timeout = %v", cfg.Identity.Timeout)
	}
	if cfg.Postgres.Name != "sitegate" || cfg.Redis.KeyPrefix != "sitegate" {
		t.Errorf("unexpected store defaults: %+v %+v", cfg.Postgres, cfg.Redis)
	}
	if cfg.Redis.SignalChannel != "sitegate:sync" {
		t.Errorf("SignalChannel = %q", cfg.Redis.SignalChannel)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestAppConfig_ParseEnv(t *testing.T) {
	cfg := parseEnv(t, map[string]string{
		"SERVICES":                  "host,portal",
		"LOG_LEVEL":                 "DEBUG",
		"IDENTITY_BASE_URL":         "https://idp.example.com/",
		"IDENTITY_TIMEOUT":          "3s",
		"IDENTITY_ERROR_CODE_PATH":  "errors[0].reason",
		"IDENTITY_RECOVERY_CODES":   "token_gone, refresh_token_not_found",
		"AUTH_ADMIN_DESTINATION":    "/console",
		"AUTH_DEFAULT_DESTINATION":  "/home",
		"AUTH_WATCHDOG_TIMEOUT":     "4s",
		"SYNC_SELF_ORIGIN":          "https://app.example.com/",
		"SYNC_ALLOWED_ORIGINS":      "https://portal.example.com, site:example.org",
		"SYNC_POLL_INTERVAL":        "250ms",
		"SYNC_RULES_FILE":           "/etc/sitegate/rules.yaml",
		"SYNC_PORTAL_UPSTREAM_URL":  "https://api.portal.example.com",
		"SYNC_SHARED_SECRET":        " k3y ",
		"DEV_IDENTITY_USERS":        "a@b.com|a|pw;c@d.com|c|pw|disabled",
		"DEV_IDENTITY_SECRET":       " s3cret ",
		"DEV_IDENTITY_MAX_FAILURES": "0",
		"REDIS_KEY_PREFIX":          "sg:",
		"DB_NAME":                   "gate",
	})
	cfg.Sanitize()

	expectedIdentity := IdentityConfig{
		BaseURL:       "https://idp.example.com",
		Timeout:       3 * time.Second,
		ErrorCodePath: "errors[0].reason",
		RecoveryCodes: []string{"token_gone", "refresh_token_not_found"},
	}
	if !reflect.DeepEqual(cfg.Identity, expectedIdentity) {
		t.Fatalf("unexpected identity configuration:\nexpected: %#v\ngot:      %#v", expectedIdentity, cfg.Identity)
	}

	expectedAuth := AuthConfig{
		AdminDestination:   "/console",
		DefaultDestination: "/home",
		WatchdogTimeout:    4 * time.Second,
	}
	if !reflect.DeepEqual(cfg.Auth, expectedAuth) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expectedAuth, cfg.Auth)
	}

	if cfg.Sync.SelfOrigin != "https://app.example.com" {
		t.Errorf("SelfOrigin = %q", cfg.Sync.SelfOrigin)
	}
	if !reflect.DeepEqual(cfg.Sync.AllowedOrigins, []string{"https://portal.example.com", "site:example.org"}) {
		t.Errorf("AllowedOrigins = %#v", cfg.Sync.AllowedOrigins)
	}
	if cfg.Sync.PollInterval != 250*time.Millisecond || cfg.Sync.RulesFile != "/etc/sitegate/rules.yaml" {
		t.Errorf("unexpected sync configuration: %+v", cfg.Sync)
	}
	if cfg.Sync.PortalUpstreamURL != "https://api.portal.example.com" {
		t.Errorf("PortalUpstreamURL = %q", cfg.Sync.PortalUpstreamURL)
	}
	if cfg.Sync.SharedSecret != "k3y" {
		t.Errorf("SharedSecret = %q", cfg.Sync.SharedSecret)
	}
	if cfg.DevIdentity.Secret != "s3cret" || cfg.DevIdentity.MaxFailures != 1 {
		t.Errorf("unexpected dev identity configuration: %+v", cfg.DevIdentity)
	}
	if cfg.Redis.KeyPrefix != "sg" || cfg.Postgres.Name != "gate" {
		t.Errorf("unexpected store configuration: %+v %+v", cfg.Redis, cfg.Postgres)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if !cfg.IsHostEnabled() || !cfg.IsPortalEnabled() || cfg.IsIdentityEnabled() {
		t.Errorf("unexpected service modes for %q", cfg.Services)
	}
}

func TestSanitize_Guardrails(t *testing.T) {
	cfg := AppConfig{
		LogLevel: "verbose",
		Auth:     AuthConfig{WatchdogTimeout: time.Millisecond},
		Sync:     SyncConfig{PollInterval: 0, AllowedOrigins: []string{" ", "https://a.example.com"}},
		HTTP:     HTTPConfig{ShutdownTimeout: 0},
		Redis:    RedisConfig{StorageTTL: -time.Second},
	}
	cfg.Sanitize()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Auth.WatchdogTimeout != 10*time.Second {
		t.Errorf("WatchdogTimeout = %v", cfg.Auth.WatchdogTimeout)
	}
	if cfg.Auth.AdminDestination != "/admin" || cfg.Auth.DefaultDestination != "/portal" {
		t.Errorf("destinations not defaulted: %+v", cfg.Auth)
	}
	if cfg.Sync.PollInterval != 100*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Sync.PollInterval)
	}
	if !reflect.DeepEqual(cfg.Sync.AllowedOrigins, []string{"https://a.example.com"}) {
		t.Errorf("AllowedOrigins = %#v", cfg.Sync.AllowedOrigins)
	}
	if cfg.HTTP.ShutdownTimeout != time.Second || cfg.HTTP.ReadHeaderTimeout != 10*time.Second {
		t.Errorf("unexpected http configuration: %+v", cfg.HTTP)
	}
	if cfg.Redis.StorageTTL != 0 || cfg.Redis.KeyPrefix != "sitegate" {
		t.Errorf("unexpected redis configuration: %+v", cfg.Redis)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "   "}
	cfg.Sanitize()
	if cfg.IsEnabled() {
		t.Fatal("metrics should be disabled without an address")
	}
	if cfg.Prefix != "sitegate" {
		t.Errorf("Prefix = %q", cfg.Prefix)
	}

	cfg = ObservabilityMetricsConfig{Enabled: true, StatsdAddress: " 127.0.0.1:8125 "}
	cfg.Sanitize()
	if !cfg.IsEnabled() || cfg.StatsdAddress != "127.0.0.1:8125" {
		t.Fatalf("unexpected metrics configuration: %+v", cfg)
	}
}
