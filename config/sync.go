package config

import (
	"strings"
	"time"
)

// SyncConfig configures the cross-context sync bridge.
type SyncConfig struct {
	// SelfOrigin is the host origin; the portal addresses its messages to it.
	SelfOrigin string `env:"SELF_ORIGIN" envDefault:"http://localhost:8080"`

	// AllowedOrigins lists origins (or "site:" registrable-domain entries) allowed to post sync messages.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:8081"`

	// PortalOrigin is the portal context's own origin.
	PortalOrigin string `env:"PORTAL_ORIGIN" envDefault:"http://localhost:8081"`

	// HostURL is where the portal posts sync messages.
	HostURL string `env:"HOST_URL" envDefault:"http://localhost:8080"`

	// PortalURL is where the host polls the portal's logged-out flag. Empty disables polling.
	PortalURL string `env:"PORTAL_URL" envDefault:"http://localhost:8081"`

	// PortalUpstreamURL is the real portal API proxied under /portal/api/.
	PortalUpstreamURL string `env:"PORTAL_UPSTREAM_URL"`

	// PollInterval is the URL and peer-state poll cadence.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`

	// SharedSecret signs portal-to-host messages when set on both sides.
	SharedSecret string `env:"SHARED_SECRET"`

	// RulesFile optionally overrides the logout detection rules (YAML).
	RulesFile string `env:"RULES_FILE"`
}

// Sanitize applies guardrails to sync configuration values.
func (c *SyncConfig) Sanitize() {
	c.SelfOrigin = strings.TrimSuffix(strings.TrimSpace(c.SelfOrigin), "/")
	c.PortalOrigin = strings.TrimSuffix(strings.TrimSpace(c.PortalOrigin), "/")
	c.HostURL = strings.TrimSpace(c.HostURL)
	c.PortalURL = strings.TrimSpace(c.PortalURL)
	c.PortalUpstreamURL = strings.TrimSpace(c.PortalUpstreamURL)
	c.RulesFile = strings.TrimSpace(c.RulesFile)
	c.SharedSecret = strings.TrimSpace(c.SharedSecret)
	c.AllowedOrigins = trimAll(c.AllowedOrigins)
	if c.PollInterval < 100*time.Millisecond {
		c.PollInterval = 100 * time.Millisecond
	}
}
