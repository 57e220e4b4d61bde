package config

import (
	"strings"
	"time"
)

// IdentityConfig configures the client for the identity backend's auth contract.
type IdentityConfig struct {
	// BaseURL is the identity backend root, e.g. "https://idp.example.com".
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8082"`

	// Timeout bounds every backend request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// ErrorCodePath is a JMESPath expression locating the error code in failure bodies.
	// Empty uses the client's built-in expression.
	ErrorCodePath string `env:"ERROR_CODE_PATH"`

	// RecoveryCodes are backend error codes that force a session reset.
	// Empty uses the client's built-in list.
	RecoveryCodes []string `env:"RECOVERY_CODES"`
}

// Sanitize applies guardrails to identity client configuration values.
func (c *IdentityConfig) Sanitize() {
	c.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	c.ErrorCodePath = strings.TrimSpace(c.ErrorCodePath)
	c.RecoveryCodes = trimAll(c.RecoveryCodes)
}

// AuthConfig groups post-login routing and resolver tunables.
type AuthConfig struct {
	// AdminDestination is where administrators land after login.
	AdminDestination string `env:"ADMIN_DESTINATION" envDefault:"/admin"`

	// DefaultDestination is where everyone else lands after login.
	DefaultDestination string `env:"DEFAULT_DESTINATION" envDefault:"/portal"`

	// WatchdogTimeout settles a pending status resolve as unauthenticated.
	WatchdogTimeout time.Duration `env:"WATCHDOG_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to auth configuration values.
func (c *AuthConfig) Sanitize() {
	c.AdminDestination = strings.TrimSpace(c.AdminDestination)
	if c.AdminDestination == "" {
		c.AdminDestination = "/admin"
	}
	c.DefaultDestination = strings.TrimSpace(c.DefaultDestination)
	if c.DefaultDestination == "" {
		c.DefaultDestination = "/portal"
	}
	if c.WatchdogTimeout < 100*time.Millisecond {
		c.WatchdogTimeout = 10 * time.Second
	}
}

// DevIdentityConfig controls the development identity backend (mode idp).
type DevIdentityConfig struct {
	// Users lists accounts as "email|username|password[|status]" entries separated by ';'.
	Users string `env:"USERS" envDefault:"dev@example.com|dev|devpassword"`

	// Secret signs session tokens. Required when the idp mode is enabled.
	Secret string `env:"SECRET"`

	SessionTTL  time.Duration `env:"SESSION_TTL"  envDefault:"8h"`
	MaxFailures int           `env:"MAX_FAILURES" envDefault:"5"`
	Lockout     time.Duration `env:"LOCKOUT"      envDefault:"5m"`
}

// Sanitize applies guardrails to dev identity configuration values.
func (c *DevIdentityConfig) Sanitize() {
	c.Secret = strings.TrimSpace(c.Secret)
	if c.SessionTTL <= 0 {
		c.SessionTTL = 8 * time.Hour
	}
	if c.MaxFailures < 1 {
		c.MaxFailures = 1
	}
	if c.Lockout < time.Second {
		c.Lockout = time.Second
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
